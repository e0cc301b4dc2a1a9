package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"appstore/internal/auth"
	"appstore/internal/domain/account"
)

// SignUpAuthenticator defines the provider interface needed by SignUp.
type SignUpAuthenticator interface {
	SignUp(ctx context.Context, email, password, fullName string) (auth.Identity, error)
}

// AccountUpserter creates accounts keyed by identity id.
type AccountUpserter interface {
	Upsert(ctx context.Context, a account.Account) (account.Account, error)
}

// SignUpInput carries input for the sign-up orchestrator.
type SignUpInput struct {
	Email    string
	Password string
	FullName string
}

// SignUpDeps holds dependencies for SignUp.
type SignUpDeps struct {
	Authenticator SignUpAuthenticator
	Accounts      AccountUpserter
	Now           func() time.Time
}

// ExecuteSignUp registers an identity and its member account.
// PRE: Email and Password are non-empty
// POST: a member account row exists for the new identity
func ExecuteSignUp(ctx context.Context, input SignUpInput, deps SignUpDeps) (account.Account, error) {
	ident, err := deps.Authenticator.SignUp(ctx, input.Email, input.Password, input.FullName)
	if err != nil {
		return account.Account{}, err
	}

	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		fullName = ident.FullName
	}
	emailAddr := ident.Email
	if emailAddr == "" {
		emailAddr = input.Email
	}
	now := clock(deps.Now)

	acct, err := deps.Accounts.Upsert(ctx, account.NewDefault(ident.ID, emailAddr, fullName, now()))
	if err != nil {
		return account.Account{}, fmt.Errorf("%w: %w", auth.ErrAccountProvision, err)
	}
	slog.Info("auth_event", "event", "signed_up", "identity_id", ident.ID)
	return acct, nil
}
