package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"appstore/internal/adapters/storage"
	domain "appstore/internal/domain/app"
)

const columns = `id, name, description, image, status, category_slug, version, developer,
	system_requirements, file_path, file_name, file_size, file_type, download_count,
	created_at, updated_at`

// SQLiteStore implements Store and VersionStore using SQLite.
type SQLiteStore struct {
	db  storage.SQLDB
	now func() time.Time
}

var (
	_ Store        = (*SQLiteStore)(nil)
	_ VersionStore = (*SQLiteStore)(nil)
)

// NewSQLiteStore creates a new app SQLiteStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// GetByID retrieves an App by its ID.
// PRE: id is non-empty
// POST: Returns the entity or domain.ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.App, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+columns+" FROM app WHERE id = ?", id)
	entity, err := scanApp(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.App{}, domain.ErrNotFound
	}
	return entity, err
}

// Create inserts a new App.
// PRE: entity has been normalized and validated
func (s *SQLiteStore) Create(ctx context.Context, e domain.App) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO app ("+columns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.Name, e.Description, e.Image, e.Status, e.CategorySlug, e.Version, e.Developer,
		e.SystemRequirements, e.FilePath, e.FileName, e.FileSize, e.FileType, e.DownloadCount,
		storage.FormatTime(e.CreatedAt), storage.FormatTime(e.UpdatedAt),
	)
	return err
}

// Update saves the editable fields of an App. File metadata and the download
// counter are owned by SetFile and IncrementDownloads.
// PRE: entity has been normalized and validated
func (s *SQLiteStore) Update(ctx context.Context, e domain.App) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE app SET name = ?, description = ?, image = ?, status = ?, category_slug = ?,
			version = ?, developer = ?, system_requirements = ?, updated_at = ? WHERE id = ?`,
		e.Name, e.Description, e.Image, e.Status, e.CategorySlug, e.Version, e.Developer,
		e.SystemRequirements, storage.FormatTime(e.UpdatedAt), e.ID,
	)
	return affectedOne(res, err)
}

// Delete removes an App; its versions and ratings cascade.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM app WHERE id = ?", id)
	return affectedOne(res, err)
}

// List retrieves Apps based on the filter.
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.App, error) {
	var q strings.Builder
	var args []any

	q.WriteString("SELECT " + columns + " FROM app")
	if filter.CategorySlug != "" {
		q.WriteString(" WHERE category_slug = ?")
		args = append(args, filter.CategorySlug)
	}
	if filter.SortBy == SortUpdatedAt {
		q.WriteString(" ORDER BY updated_at")
	} else {
		q.WriteString(" ORDER BY name COLLATE NOCASE")
	}
	if filter.Desc {
		q.WriteString(" DESC")
	}
	q.WriteString(", id")
	if filter.Limit > 0 {
		q.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.App
	for rows.Next() {
		entity, err := scanApp(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// Count returns the number of apps.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM app").Scan(&n)
	return n, err
}

// SetFile records the uploaded file on the app row.
func (s *SQLiteStore) SetFile(ctx context.Context, id string, f domain.FileInfo) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE app SET file_path = ?, file_name = ?, file_size = ?, file_type = ?, updated_at = ? WHERE id = ?",
		f.Path, f.Name, f.Size, f.Type, storage.FormatTime(s.now()), id,
	)
	return affectedOne(res, err)
}

// IncrementDownloads adds one to the download counter in a single statement.
func (s *SQLiteStore) IncrementDownloads(ctx context.Context, id string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		"UPDATE app SET download_count = download_count + 1, updated_at = ? WHERE id = ? RETURNING download_count",
		storage.FormatTime(s.now()), id,
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	return n, err
}

// AddVersion inserts v and makes it the app's current version.
// PRE: v has been validated
func (s *SQLiteStore) AddVersion(ctx context.Context, v domain.Version) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "UPDATE app SET version = ?, updated_at = ? WHERE id = ?",
		v.Version, storage.FormatTime(v.CreatedAt), v.AppID)
	if err := affectedOne(res, err); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO app_version (id, app_id, version, release_notes, created_at) VALUES (?, ?, ?, ?, ?)",
		v.ID, v.AppID, v.Version, v.ReleaseNotes, storage.FormatTime(v.CreatedAt),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// ListVersions returns an app's versions, newest first.
func (s *SQLiteStore) ListVersions(ctx context.Context, appID string) ([]domain.Version, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, app_id, version, release_notes, created_at FROM app_version WHERE app_id = ? ORDER BY created_at DESC, id DESC",
		appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Version
	for rows.Next() {
		var v domain.Version
		var created string
		if err := rows.Scan(&v.ID, &v.AppID, &v.Version, &v.ReleaseNotes, &created); err != nil {
			return nil, err
		}
		v.CreatedAt, _ = storage.ParseTime(created)
		results = append(results, v)
	}
	return results, rows.Err()
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanApp(fn func(dest ...any) error) (domain.App, error) {
	var e domain.App
	var created, updated string
	err := fn(
		&e.ID, &e.Name, &e.Description, &e.Image, &e.Status, &e.CategorySlug, &e.Version,
		&e.Developer, &e.SystemRequirements, &e.FilePath, &e.FileName, &e.FileSize, &e.FileType,
		&e.DownloadCount, &created, &updated,
	)
	if err != nil {
		return domain.App{}, err
	}
	e.CreatedAt, _ = storage.ParseTime(created)
	e.UpdatedAt, _ = storage.ParseTime(updated)
	return e, nil
}
