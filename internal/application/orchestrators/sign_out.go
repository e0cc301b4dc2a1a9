package orchestrators

import (
	"context"
	"log/slog"
)

// SignOutAuthenticator defines the provider interface needed by SignOut.
type SignOutAuthenticator interface {
	SignOut(ctx context.Context, token string) error
}

// ExecuteSignOut ends the session behind token. An empty token is a no-op.
func ExecuteSignOut(ctx context.Context, token string, authn SignOutAuthenticator) error {
	if token == "" {
		return nil
	}
	if err := authn.SignOut(ctx, token); err != nil {
		return err
	}
	slog.Info("auth_event", "event", "signed_out")
	return nil
}
