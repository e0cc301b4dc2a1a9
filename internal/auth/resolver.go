package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"appstore/internal/domain/account"
)

// Resolution failures. Guards treat all of them as "not enough to render a
// privileged view" and redirect instead of returning them.
var (
	ErrIdentityResolution = errors.New("identity provider unavailable")
	ErrAccountLookup      = errors.New("account lookup failed")
	ErrAccountProvision   = errors.New("account provisioning failed")
)

// AccountStore is the account datastore contract used by the Resolver.
type AccountStore interface {
	// FindByIdentityID returns nil, nil when no account exists.
	FindByIdentityID(ctx context.Context, identityID string) (*account.Account, error)
	// Upsert inserts a, keyed by its identity id. When a row already exists
	// it is kept unchanged and returned.
	Upsert(ctx context.Context, a account.Account) (account.Account, error)
}

// Session is the resolved caller. Account is non-nil only when Identity is.
type Session struct {
	Identity *Identity
	Account  *account.Account
	Err      error
}

// Authenticated reports whether an identity was resolved.
func (s Session) Authenticated() bool {
	return s.Identity != nil
}

// HasRole reports whether the session's account holds role.
func (s Session) HasRole(role account.Role) bool {
	return s.Account != nil && s.Account.Role.Is(role)
}

// Observer receives resolver and guard outcomes, e.g. for metrics.
type Observer interface {
	AccountProvisioned()
	GuardDecision(d Decision, cause error)
}

type noopObserver struct{}

func (noopObserver) AccountProvisioned() {}
func (noopObserver) GuardDecision(Decision, error) {}

// ResolverDeps holds dependencies for the Resolver.
type ResolverDeps struct {
	Identities IdentityProvider
	Accounts   AccountStore
	Observer   Observer
	Now        func() time.Time
}

// Resolver resolves the current identity and its account.
type Resolver struct {
	identities IdentityProvider
	accounts   AccountStore
	observer   Observer
	now        func() time.Time
}

// NewResolver creates a Resolver.
// PRE: deps.Identities and deps.Accounts are non-nil
func NewResolver(deps ResolverDeps) *Resolver {
	r := &Resolver{
		identities: deps.Identities,
		accounts:   deps.Accounts,
		observer:   deps.Observer,
		now:        deps.Now,
	}
	if r.observer == nil {
		r.observer = noopObserver{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// ResolveAccount resolves the caller afresh, or once per context when the
// context carries a session cache (see WithSessionCache).
//
// An identity with no account row gets a default member account; the upsert
// is keyed by identity id so concurrent first resolutions collapse to one row.
func (r *Resolver) ResolveAccount(ctx context.Context) Session {
	if c, ok := ctx.Value(cacheKey{}).(*sessionCache); ok {
		c.once.Do(func() {
			c.session = r.resolve(ctx)
		})
		return c.session
	}
	return r.resolve(ctx)
}

func (r *Resolver) resolve(ctx context.Context) Session {
	ident, err := r.identities.CurrentIdentity(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Session{Err: ctxErr}
		}
		slog.Warn("identity_resolution_failed", "error", err)
		return Session{Err: fmt.Errorf("%w: %w", ErrIdentityResolution, err)}
	}
	if ident == nil {
		return Session{}
	}

	acct, err := r.accounts.FindByIdentityID(ctx, ident.ID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Session{Identity: ident, Err: ctxErr}
		}
		slog.Warn("account_lookup_failed", "identity_id", ident.ID, "error", err)
		return Session{Identity: ident, Err: fmt.Errorf("%w: %w", ErrAccountLookup, err)}
	}
	if acct != nil {
		return Session{Identity: ident, Account: acct}
	}

	created, err := r.accounts.Upsert(ctx, account.NewDefault(ident.ID, ident.Email, ident.FullName, r.now()))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Session{Identity: ident, Err: ctxErr}
		}
		slog.Error("account_provision_failed", "identity_id", ident.ID, "error", err)
		return Session{Identity: ident, Err: fmt.Errorf("%w: %w", ErrAccountProvision, err)}
	}
	r.observer.AccountProvisioned()
	slog.Info("auth_event", "event", "account_provisioned", "identity_id", ident.ID, "role", created.Role)
	return Session{Identity: ident, Account: &created}
}

type cacheKey struct{}

type sessionCache struct {
	once    sync.Once
	session Session
}

// WithSessionCache returns a context in which ResolveAccount runs at most once.
// Use one per dispatch or request so stacked guards share a resolution.
func WithSessionCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, cacheKey{}, &sessionCache{})
}
