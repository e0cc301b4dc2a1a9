// Package credential stores local email/password identities and their
// password reset tokens.
package credential

import (
	"context"
	"errors"
	"time"
)

// Store errors
var (
	ErrNotFound     = errors.New("credential not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrTokenInvalid = errors.New("reset token invalid, used or expired")
)

// Credential is a local identity.
type Credential struct {
	IdentityID   string
	Email        string
	FullName     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ResetToken is a stored password reset token. Only the hash is kept.
type ResetToken struct {
	TokenHash  string
	IdentityID string
	ExpiresAt  time.Time
}

// Store persists credentials and reset tokens.
type Store interface {
	Create(ctx context.Context, c Credential) error
	GetByID(ctx context.Context, identityID string) (Credential, error)
	GetByEmail(ctx context.Context, email string) (Credential, error)
	SaveResetToken(ctx context.Context, t ResetToken) error
	// ResetPassword marks the token used, sets the identity's password hash
	// and returns its identity id, atomically. A token works at most once.
	ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, error)
	DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int, error)
}
