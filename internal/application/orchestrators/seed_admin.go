package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"appstore/internal/auth"
	"appstore/internal/domain/account"
)

// SeedAdminAuthenticator defines the provider interface needed by SeedAdmin.
type SeedAdminAuthenticator interface {
	SignUp(ctx context.Context, email, password, fullName string) (auth.Identity, error)
	SignIn(ctx context.Context, email, password string) (auth.Token, error)
}

// SeedAdminAccountStore defines the account interface needed by SeedAdmin.
type SeedAdminAccountStore interface {
	AccountUpserter
	SetRole(ctx context.Context, id string, role account.Role) error
}

// SeedAdminInput carries the configured administrator credentials.
type SeedAdminInput struct {
	Email    string
	Password string
	FullName string
}

// SeedAdminDeps holds dependencies for SeedAdmin.
type SeedAdminDeps struct {
	Authenticator SeedAdminAuthenticator
	Accounts      SeedAdminAccountStore
	Now           func() time.Time
}

// ExecuteSeedAdmin ensures an identity and an admin account exist for the
// configured email. It is safe to run on every startup.
// PRE: Email and Password are non-empty
// POST: the identity's account has RoleAdmin
func ExecuteSeedAdmin(ctx context.Context, input SeedAdminInput, deps SeedAdminDeps) (account.Account, error) {
	if input.FullName == "" {
		input.FullName = "Administrator"
	}

	ident, err := deps.Authenticator.SignUp(ctx, input.Email, input.Password, input.FullName)
	if errors.Is(err, auth.ErrEmailTaken) {
		tok, signInErr := deps.Authenticator.SignIn(ctx, input.Email, input.Password)
		if signInErr != nil {
			return account.Account{}, fmt.Errorf("admin %s exists but the configured password is rejected: %w", input.Email, signInErr)
		}
		ident = tok.Identity
		err = nil
	}
	if err != nil {
		return account.Account{}, fmt.Errorf("create admin identity: %w", err)
	}

	now := clock(deps.Now)
	acct, err := deps.Accounts.Upsert(ctx, account.NewDefault(ident.ID, ident.Email, input.FullName, now()))
	if err != nil {
		return account.Account{}, fmt.Errorf("create admin account: %w", err)
	}
	if !acct.Role.Is(account.RoleAdmin) {
		if err := deps.Accounts.SetRole(ctx, acct.ID, account.RoleAdmin); err != nil {
			return account.Account{}, fmt.Errorf("promote admin: %w", err)
		}
		acct.Role = account.RoleAdmin
	}
	slog.Info("auth_event", "event", "admin_seeded", "identity_id", acct.ID)
	return acct, nil
}
