package rating

import (
	"context"

	"appstore/internal/adapters/storage"
	domain "appstore/internal/domain/rating"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new rating SQLiteStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Add inserts a Rating.
// PRE: value has been validated
func (s *SQLiteStore) Add(ctx context.Context, r domain.Rating) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO rating (id, app_id, account_id, rating, comment, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		r.ID, r.AppID, r.AccountID, r.Score, r.Comment, storage.FormatTime(r.CreatedAt),
	)
	return err
}

// ListForApp returns an app's ratings, newest first.
func (s *SQLiteStore) ListForApp(ctx context.Context, appID string) ([]domain.Rating, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, app_id, account_id, rating, comment, created_at FROM rating WHERE app_id = ? ORDER BY created_at DESC, id DESC",
		appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Rating
	for rows.Next() {
		var r domain.Rating
		var created string
		if err := rows.Scan(&r.ID, &r.AppID, &r.AccountID, &r.Score, &r.Comment, &created); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = storage.ParseTime(created)
		results = append(results, r)
	}
	return results, rows.Err()
}

// Summaries aggregates every app's ratings in one query.
func (s *SQLiteStore) Summaries(ctx context.Context) (map[string]domain.Summary, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT app_id, COUNT(*), AVG(rating) FROM rating GROUP BY app_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]domain.Summary)
	for rows.Next() {
		var appID string
		var sum domain.Summary
		if err := rows.Scan(&appID, &sum.Count, &sum.Average); err != nil {
			return nil, err
		}
		out[appID] = sum
	}
	return out, rows.Err()
}
