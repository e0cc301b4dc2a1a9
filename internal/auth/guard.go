package auth

import (
	"context"
	"log/slog"

	"appstore/internal/domain/account"
)

// Default redirect targets.
const (
	DefaultLoginRoute   = "#/login"
	DefaultLandingRoute = "#/marketplaces"
)

// Decision is the outcome of a guard check.
type Decision int

const (
	Rendered Decision = iota
	RedirectedToLogin
	RedirectedToLanding
)

func (d Decision) String() string {
	switch d {
	case Rendered:
		return "rendered"
	case RedirectedToLogin:
		return "redirected_to_login"
	case RedirectedToLanding:
		return "redirected_to_landing"
	default:
		return "unknown"
	}
}

// Navigator moves the caller to another location.
type Navigator interface {
	NavigateTo(ctx context.Context, location string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, location string) error

// NavigateTo calls f.
func (f NavigatorFunc) NavigateTo(ctx context.Context, location string) error {
	return f(ctx, location)
}

// SessionResolver is satisfied by *Resolver.
type SessionResolver interface {
	ResolveAccount(ctx context.Context) Session
}

// RenderFunc renders a view for a resolved session.
type RenderFunc func(ctx context.Context, s Session) error

// GuardConfig configures a Guard. Empty routes take the defaults.
type GuardConfig struct {
	Resolver     SessionResolver
	Navigator    Navigator
	Observer     Observer
	LoginRoute   string
	LandingRoute string
}

// Guard gates render callbacks on authentication and role.
// Resolution failures never reach the caller as errors; they fail closed.
type Guard struct {
	resolver SessionResolver
	nav      Navigator
	observer Observer
	login    string
	landing  string
}

// NewGuard creates a Guard.
// PRE: cfg.Resolver and cfg.Navigator are non-nil
func NewGuard(cfg GuardConfig) *Guard {
	g := &Guard{
		resolver: cfg.Resolver,
		nav:      cfg.Navigator,
		observer: cfg.Observer,
		login:    cfg.LoginRoute,
		landing:  cfg.LandingRoute,
	}
	if g.observer == nil {
		g.observer = noopObserver{}
	}
	if g.login == "" {
		g.login = DefaultLoginRoute
	}
	if g.landing == "" {
		g.landing = DefaultLandingRoute
	}
	return g
}

// LoginRoute returns the location unauthenticated callers are sent to.
func (g *Guard) LoginRoute() string { return g.login }

// LandingRoute returns the location under-privileged callers are sent to.
func (g *Guard) LandingRoute() string { return g.landing }

// RequireAuthenticated renders when an identity resolves and otherwise
// navigates to the login route without rendering. A missing or failed account
// does not block rendering; the session's Account is nil in that case.
// The returned error is the render or navigation error.
func (g *Guard) RequireAuthenticated(ctx context.Context, render RenderFunc) (Decision, error) {
	s := g.resolver.ResolveAccount(ctx)
	if !s.Authenticated() {
		return g.redirect(ctx, RedirectedToLogin, g.login, s.Err)
	}
	g.decided(Rendered, s.Err)
	return Rendered, render(ctx, s)
}

// RequireRole renders when the resolved account holds role. Unauthenticated
// callers go to the login route; everyone else without the role, including
// callers whose account could not be read or provisioned, goes to the landing
// route.
func (g *Guard) RequireRole(ctx context.Context, role account.Role, render RenderFunc) (Decision, error) {
	s := g.resolver.ResolveAccount(ctx)
	if !s.Authenticated() {
		return g.redirect(ctx, RedirectedToLogin, g.login, s.Err)
	}
	if !s.HasRole(role) {
		return g.redirect(ctx, RedirectedToLanding, g.landing, s.Err)
	}
	g.decided(Rendered, nil)
	return Rendered, render(ctx, s)
}

// RequireAdmin is RequireRole(ctx, account.RoleAdmin, render).
func (g *Guard) RequireAdmin(ctx context.Context, render RenderFunc) (Decision, error) {
	return g.RequireRole(ctx, account.RoleAdmin, render)
}

// redirect navigates to target. A caller whose context has already ended is
// not moved, so an abandoned check cannot override a newer navigation.
func (g *Guard) redirect(ctx context.Context, d Decision, target string, cause error) (Decision, error) {
	if err := ctx.Err(); err != nil {
		slog.Debug("guard_redirect_abandoned", "decision", d.String(), "target", target, "error", err)
		return d, err
	}
	g.decided(d, cause)
	slog.Debug("guard_redirect", "decision", d.String(), "target", target, "cause", cause)
	return d, g.nav.NavigateTo(ctx, target)
}

func (g *Guard) decided(d Decision, cause error) {
	g.observer.GuardDecision(d, cause)
}
