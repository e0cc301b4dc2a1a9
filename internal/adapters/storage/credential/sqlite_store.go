package credential

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"appstore/internal/adapters/storage"
)

const columns = "identity_id, email, full_name, password_hash, created_at, updated_at"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new credential SQLiteStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Create inserts a credential. Emails are unique case-insensitively.
// PRE: c.PasswordHash is a bcrypt hash
func (s *SQLiteStore) Create(ctx context.Context, c Credential) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO credential ("+columns+") VALUES (?, ?, ?, ?, ?, ?)",
		c.IdentityID, strings.TrimSpace(c.Email), c.FullName, c.PasswordHash,
		storage.FormatTime(c.CreatedAt), storage.FormatTime(c.UpdatedAt),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: credential.email") {
		return ErrEmailTaken
	}
	return err
}

// GetByID retrieves a credential by identity id.
func (s *SQLiteStore) GetByID(ctx context.Context, identityID string) (Credential, error) {
	return s.getOne(ctx, "identity_id = ?", identityID)
}

// GetByEmail retrieves a credential by email, ignoring case.
func (s *SQLiteStore) GetByEmail(ctx context.Context, email string) (Credential, error) {
	return s.getOne(ctx, "email = ?", strings.TrimSpace(email))
}

func (s *SQLiteStore) getOne(ctx context.Context, where string, arg string) (Credential, error) {
	var c Credential
	var created, updated string
	err := s.db.QueryRowContext(ctx, "SELECT "+columns+" FROM credential WHERE "+where, arg).
		Scan(&c.IdentityID, &c.Email, &c.FullName, &c.PasswordHash, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, ErrNotFound
	}
	if err != nil {
		return Credential{}, err
	}
	c.CreatedAt, _ = storage.ParseTime(created)
	c.UpdatedAt, _ = storage.ParseTime(updated)
	return c, nil
}

// SaveResetToken stores a reset token hash.
func (s *SQLiteStore) SaveResetToken(ctx context.Context, t ResetToken) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO password_reset (token_hash, identity_id, expires_at) VALUES (?, ?, ?)",
		t.TokenHash, t.IdentityID, t.ExpiresAt.Unix())
	return err
}

// ResetPassword consumes an unused, unexpired token and replaces the password
// of its identity in one transaction. Nothing changes when either step fails.
func (s *SQLiteStore) ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var identityID string
	err = tx.QueryRowContext(ctx,
		`UPDATE password_reset SET used_at = ?
		 WHERE token_hash = ? AND used_at IS NULL AND expires_at > ?
		 RETURNING identity_id`,
		now.Unix(), tokenHash, now.Unix(),
	).Scan(&identityID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrTokenInvalid
	}
	if err != nil {
		return "", err
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE credential SET password_hash = ?, updated_at = ? WHERE identity_id = ?",
		passwordHash, storage.FormatTime(now), identityID)
	if err != nil {
		return "", err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", ErrNotFound
	}
	return identityID, tx.Commit()
}

// DeleteExpiredResetTokens removes used and expired tokens.
func (s *SQLiteStore) DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM password_reset WHERE used_at IS NOT NULL OR expires_at <= ?", now.Unix())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
