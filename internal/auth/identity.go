// Package auth answers "who is the caller" and gates page rendering on it.
//
// The Resolver combines an external identity provider with the application's
// account store, provisioning a default member account the first time an
// identity is seen. Guards wrap render callbacks and redirect when the caller
// is not signed in or lacks the required role.
package auth

import (
	"context"
	"errors"
	"time"
)

// Identity is the external provider's notion of who is signed in.
type Identity struct {
	ID       string
	Email    string
	FullName string
}

// IdentityProvider looks up the identity behind the current session.
// A nil identity with a nil error means nobody is signed in.
type IdentityProvider interface {
	CurrentIdentity(ctx context.Context) (*Identity, error)
}

// Token is a signed-in session issued by an Authenticator.
type Token struct {
	Value     string
	ExpiresAt time.Time
	Identity  Identity
}

// Authenticator is the full identity provider surface used by the sign-in,
// sign-up and password reset flows.
type Authenticator interface {
	IdentityProvider
	SignIn(ctx context.Context, email, password string) (Token, error)
	SignUp(ctx context.Context, email, password, fullName string) (Identity, error)
	SignOut(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, email, redirectURL string) error
	CompletePasswordReset(ctx context.Context, resetToken, newPassword string) error
}

// Provider errors shared by every Authenticator.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrResetTokenInvalid  = errors.New("password reset link is invalid or has expired")
	ErrInvalidEmail       = errors.New("enter a valid email address")
)

// MinPasswordLength is the shortest password accepted at sign-up and reset.
const MinPasswordLength = 8

type tokenKey struct{}

type tokenSourceKey struct{}

// WithToken returns a context carrying the caller's session token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// WithTokenSource returns a context whose session token is read from src on
// every lookup. Long-lived contexts use it when the token changes over time,
// e.g. across sign-in and sign-out in the shell.
func WithTokenSource(ctx context.Context, src func() string) context.Context {
	return context.WithValue(ctx, tokenSourceKey{}, src)
}

// TokenFromContext returns the session token set by WithToken, falling back
// to a source set by WithTokenSource.
func TokenFromContext(ctx context.Context) (string, bool) {
	if tok, ok := ctx.Value(tokenKey{}).(string); ok {
		return tok, tok != ""
	}
	if src, ok := ctx.Value(tokenSourceKey{}).(func() string); ok {
		tok := src()
		return tok, tok != ""
	}
	return "", false
}
