package orchestrators

import (
	"context"
	"errors"
	"strings"

	"appstore/internal/auth"
)

// ErrPasswordMismatch is returned when the confirmation differs.
var ErrPasswordMismatch = errors.New("passwords do not match")

// PasswordResetAuthenticator defines the provider interface needed by the
// password reset flow.
type PasswordResetAuthenticator interface {
	RequestPasswordReset(ctx context.Context, email, redirectURL string) error
	CompletePasswordReset(ctx context.Context, resetToken, newPassword string) error
}

// RequestPasswordResetInput carries input for RequestPasswordReset.
type RequestPasswordResetInput struct {
	Email       string
	RedirectURL string // where the emailed link points
}

// ExecuteRequestPasswordReset asks the provider to email a reset link.
// POST: returns nil for unknown addresses where the provider allows it
func ExecuteRequestPasswordReset(ctx context.Context, input RequestPasswordResetInput, authn PasswordResetAuthenticator) error {
	email := strings.TrimSpace(input.Email)
	if !strings.Contains(email, "@") {
		return auth.ErrInvalidEmail
	}
	return authn.RequestPasswordReset(ctx, email, input.RedirectURL)
}

// CompletePasswordResetInput carries input for CompletePasswordReset.
type CompletePasswordResetInput struct {
	Token       string
	NewPassword string
	Confirm     string
}

// ExecuteCompletePasswordReset sets a new password with a reset token.
// PRE: Token came from a reset link
func ExecuteCompletePasswordReset(ctx context.Context, input CompletePasswordResetInput, authn PasswordResetAuthenticator) error {
	if input.Token == "" {
		return auth.ErrResetTokenInvalid
	}
	if input.NewPassword != input.Confirm {
		return ErrPasswordMismatch
	}
	if len(input.NewPassword) < auth.MinPasswordLength {
		return auth.ErrWeakPassword
	}
	return authn.CompletePasswordReset(ctx, input.Token, input.NewPassword)
}
