package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"appstore/internal/auth"
	"appstore/internal/domain/account"
)

// AdminLandingRoute is where administrators land after signing in.
const AdminLandingRoute = "#/admin"

// SignInAuthenticator defines the provider interface needed by SignIn.
type SignInAuthenticator interface {
	SignIn(ctx context.Context, email, password string) (auth.Token, error)
}

// SignInInput carries input for the sign-in orchestrator.
type SignInInput struct {
	Email    string
	Password string
}

// SignInResult carries the result of a successful sign-in.
type SignInResult struct {
	Token   auth.Token
	Session auth.Session
	Landing string
}

// SignInDeps holds dependencies for SignIn.
type SignInDeps struct {
	Authenticator SignInAuthenticator
	Resolver      auth.SessionResolver
}

// ExecuteSignIn signs the caller in and picks the landing route for their role.
// PRE: Email and Password are non-empty
// POST: Landing is AdminLandingRoute for admins, the default landing otherwise
// INVARIANT: an account problem never blocks a successful sign-in
func ExecuteSignIn(ctx context.Context, input SignInInput, deps SignInDeps) (SignInResult, error) {
	if strings.TrimSpace(input.Email) == "" || input.Password == "" {
		return SignInResult{}, auth.ErrInvalidCredentials
	}

	tok, err := deps.Authenticator.SignIn(ctx, input.Email, input.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			slog.Info("auth_event", "event", "sign_in_failed", "reason", "invalid_credentials")
		}
		return SignInResult{}, err
	}

	// Resolve with the fresh token so a first sign-in provisions the account.
	sess := deps.Resolver.ResolveAccount(auth.WithToken(ctx, tok.Value))
	landing := LandingFor(sess)
	if sess.Err != nil {
		slog.Warn("auth_event", "event", "sign_in_account_unresolved", "identity_id", tok.Identity.ID, "error", sess.Err)
	}
	return SignInResult{Token: tok, Session: sess, Landing: landing}, nil
}

// LandingFor returns where a signed-in session starts: the admin dashboard for
// admins, the marketplaces otherwise.
func LandingFor(sess auth.Session) string {
	if sess.HasRole(account.RoleAdmin) {
		return AdminLandingRoute
	}
	return auth.DefaultLandingRoute
}
