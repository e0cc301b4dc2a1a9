package marketplace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"appstore/internal/adapters/storage"
	domain "appstore/internal/domain/marketplace"
)

// Store errors
var (
	ErrNotFound  = errors.New("marketplace not found")
	ErrSlugTaken = errors.New("a marketplace with this slug already exists")
)

const columns = "id, name, slug, description, is_public, require_approval, created_at, updated_at"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new marketplace SQLiteStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a Marketplace by its ID.
// PRE: id is non-empty
// POST: Returns the entity or ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Marketplace, error) {
	return s.getOne(ctx, "id", id)
}

// GetBySlug retrieves a Marketplace by its slug.
func (s *SQLiteStore) GetBySlug(ctx context.Context, slug string) (domain.Marketplace, error) {
	return s.getOne(ctx, "slug", slug)
}

func (s *SQLiteStore) getOne(ctx context.Context, column, value string) (domain.Marketplace, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+columns+" FROM marketplace WHERE "+column+" = ?", value)
	entity, err := scan(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Marketplace{}, ErrNotFound
	}
	return entity, err
}

// Create inserts a new Marketplace.
// PRE: entity has been normalized and validated
// POST: row inserted, or ErrSlugTaken
func (s *SQLiteStore) Create(ctx context.Context, e domain.Marketplace) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO marketplace ("+columns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.Name, e.Slug, e.Description, e.IsPublic, e.RequireApproval,
		storage.FormatTime(e.CreatedAt), storage.FormatTime(e.UpdatedAt),
	)
	return mapConstraint(err)
}

// Update saves e. When the slug changes, apps filed under previousSlug move
// with it in the same transaction.
// PRE: entity has been normalized and validated
func (s *SQLiteStore) Update(ctx context.Context, e domain.Marketplace, previousSlug string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE marketplace SET name = ?, slug = ?, description = ?, is_public = ?,
			require_approval = ?, updated_at = ? WHERE id = ?`,
		e.Name, e.Slug, e.Description, e.IsPublic, e.RequireApproval,
		storage.FormatTime(e.UpdatedAt), e.ID,
	)
	if err != nil {
		return mapConstraint(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if previousSlug != "" && previousSlug != e.Slug {
		if _, err := tx.ExecContext(ctx,
			"UPDATE app SET category_slug = ? WHERE category_slug = ?", e.Slug, previousSlug); err != nil {
			return fmt.Errorf("move apps to %s: %w", e.Slug, err)
		}
	}
	return tx.Commit()
}

// Delete removes a Marketplace. Apps filed under it are left in place.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM marketplace WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// List retrieves all Marketplaces in the requested order.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]domain.Marketplace, error) {
	order := "name COLLATE NOCASE"
	if opts.SortBy == SortUpdatedAt {
		order = "updated_at"
	}
	if opts.Desc {
		order += " DESC"
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+columns+" FROM marketplace ORDER BY "+order+", id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Marketplace
	for rows.Next() {
		entity, err := scan(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// Count returns the number of marketplaces.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM marketplace").Scan(&n)
	return n, err
}

func scan(fn func(dest ...any) error) (domain.Marketplace, error) {
	var e domain.Marketplace
	var created, updated string
	if err := fn(&e.ID, &e.Name, &e.Slug, &e.Description, &e.IsPublic, &e.RequireApproval, &created, &updated); err != nil {
		return domain.Marketplace{}, err
	}
	e.CreatedAt, _ = storage.ParseTime(created)
	e.UpdatedAt, _ = storage.ParseTime(updated)
	return e, nil
}

func mapConstraint(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: marketplace.slug") {
		return ErrSlugTaken
	}
	return err
}
