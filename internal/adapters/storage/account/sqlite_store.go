package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"appstore/internal/adapters/storage"
	domain "appstore/internal/domain/account"
)

// ErrNotFound is returned by SetRole when no account row exists.
var ErrNotFound = errors.New("account not found")

const accountColumns = "id, email, full_name, role, created_at"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new account SQLiteStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// FindByIdentityID returns the account for an identity, or nil when none exists.
// PRE: id is non-empty
func (s *SQLiteStore) FindByIdentityID(ctx context.Context, id string) (*domain.Account, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM account WHERE id = ?", id)
	entity, err := scanAccount(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// Upsert inserts the account unless a row with the same id exists, then
// returns the stored row. Concurrent calls for one id leave exactly one row.
// PRE: entity has been validated
// POST: a row with entity.ID exists
func (s *SQLiteStore) Upsert(ctx context.Context, entity domain.Account) (domain.Account, error) {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO account ("+accountColumns+") VALUES (?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING",
		entity.ID,
		entity.Email,
		entity.FullName,
		entity.Role.String(),
		storage.FormatTime(entity.CreatedAt),
	)
	if err != nil {
		return domain.Account{}, fmt.Errorf("insert account: %w", err)
	}
	stored, err := s.FindByIdentityID(ctx, entity.ID)
	if err != nil {
		return domain.Account{}, fmt.Errorf("re-read account: %w", err)
	}
	if stored == nil {
		return domain.Account{}, fmt.Errorf("re-read account %s: %w", entity.ID, ErrNotFound)
	}
	return *stored, nil
}

// SetRole changes the role of an existing account.
// PRE: role is one of domain.ValidRoles
func (s *SQLiteStore) SetRole(ctx context.Context, id string, role domain.Role) error {
	res, err := s.db.ExecContext(ctx, "UPDATE account SET role = ? WHERE id = ?", role.String(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// List retrieves accounts, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Account, error) {
	var q strings.Builder
	var args []any

	q.WriteString("SELECT " + accountColumns + " FROM account")
	if filter.Role != "" {
		q.WriteString(" WHERE role = ? COLLATE NOCASE")
		args = append(args, filter.Role.String())
	}
	q.WriteString(" ORDER BY created_at DESC")
	if filter.Limit > 0 {
		q.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Account
	for rows.Next() {
		entity, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// Count returns the total number of accounts.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM account").Scan(&count)
	return count, err
}

func scanAccount(scan func(dest ...any) error) (domain.Account, error) {
	var entity domain.Account
	var role, createdAt string
	if err := scan(&entity.ID, &entity.Email, &entity.FullName, &role, &createdAt); err != nil {
		return domain.Account{}, err
	}
	entity.Role = domain.ParseRole(role)
	entity.CreatedAt, _ = storage.ParseTime(createdAt)
	return entity, nil
}
