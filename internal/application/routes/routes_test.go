package routes

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"

	"appstore/internal/auth"
	"appstore/internal/domain/account"
	"appstore/internal/router"
)

// stubResolver returns a fixed session.
type stubResolver struct{ session auth.Session }

func (s stubResolver) ResolveAccount(context.Context) auth.Session { return s.session }

// recordingNav records navigation targets.
type recordingNav struct {
	mu      sync.Mutex
	targets []string
}

func (n *recordingNav) NavigateTo(_ context.Context, location string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, location)
	return nil
}

// recordingPages records which page rendered and with which argument.
type recordingPages struct {
	calls []string
}

func (p *recordingPages) record(name string, args ...string) error {
	p.calls = append(p.calls, name+"("+strings.Join(args, ",")+")")
	return nil
}

func (p *recordingPages) Login(context.Context) error { return p.record("Login") }
func (p *recordingPages) SignUp(context.Context) error { return p.record("SignUp") }
func (p *recordingPages) ResetPassword(context.Context) error { return p.record("ResetPassword") }
func (p *recordingPages) Marketplaces(context.Context, auth.Session) error {
	return p.record("Marketplaces")
}
func (p *recordingPages) Category(_ context.Context, _ auth.Session, slug string) error {
	return p.record("Category", slug)
}
func (p *recordingPages) App(_ context.Context, _ auth.Session, id string) error {
	return p.record("App", id)
}
func (p *recordingPages) AdminDashboard(context.Context, auth.Session) error {
	return p.record("AdminDashboard")
}
func (p *recordingPages) AdminApps(context.Context, auth.Session) error {
	return p.record("AdminApps")
}
func (p *recordingPages) AdminAppForm(_ context.Context, _ auth.Session, id string) error {
	return p.record("AdminAppForm", id)
}
func (p *recordingPages) AdminAppVersions(_ context.Context, _ auth.Session, id string) error {
	return p.record("AdminAppVersions", id)
}
func (p *recordingPages) AdminMarketplaces(context.Context, auth.Session) error {
	return p.record("AdminMarketplaces")
}
func (p *recordingPages) AdminMarketplaceForm(_ context.Context, _ auth.Session, id string) error {
	return p.record("AdminMarketplaceForm", id)
}
func (p *recordingPages) AdminAnalytics(context.Context, auth.Session) error {
	return p.record("AdminAnalytics")
}
func (p *recordingPages) NotFound(_ context.Context, path string) error {
	return p.record("NotFound", path)
}

func session(role account.Role) auth.Session {
	return auth.Session{
		Identity: &auth.Identity{ID: "u1", Email: "jo@corp.example"},
		Account:  &account.Account{ID: "u1", Email: "jo@corp.example", Role: role},
	}
}

type fixture struct {
	router *router.Router
	nav    *recordingNav
	pages  *recordingPages
}

func newFixture(s auth.Session) fixture {
	nav := &recordingNav{}
	pages := &recordingPages{}
	res := stubResolver{session: s}
	r := router.New(router.WithNotFound(NotFound(pages)))
	Register(r, Deps{
		Guard:     auth.NewGuard(auth.GuardConfig{Resolver: res, Navigator: nav}),
		Resolver:  res,
		Navigator: nav,
		Pages:     pages,
	})
	return fixture{router: r, nav: nav, pages: pages}
}

// TestRegister_PatternOrder verifies the full routing surface is registered.
func TestRegister_PatternOrder(t *testing.T) {
	f := newFixture(auth.Session{})
	want := []string{
		Root, Login, SignUp, ResetPassword, Marketplaces, Category, App,
		Admin, AdminApps, AdminAppNew, AdminAppEdit, AdminAppVersions,
		AdminMarketplaces, AdminMarketplaceNew, AdminMarketplaceEdit, AdminAnalytics,
	}
	if got := f.router.Patterns(); !slices.Equal(got, want) {
		t.Errorf("patterns = %v", got)
	}
}

// TestRoot_SendsByAuthentication verifies "/" goes to login or the landing route.
func TestRoot_SendsByAuthentication(t *testing.T) {
	anon := newFixture(auth.Session{})
	if err := anon.router.Handle(context.Background(), "/"); err != nil {
		t.Fatal(err)
	}
	member := newFixture(session(account.RoleMember))
	if err := member.router.Handle(context.Background(), "/"); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(anon.nav.targets, []string{auth.DefaultLoginRoute}) {
		t.Errorf("anonymous targets = %v", anon.nav.targets)
	}
	if !slices.Equal(member.nav.targets, []string{auth.DefaultLandingRoute}) {
		t.Errorf("member targets = %v", member.nav.targets)
	}
}

// TestRoutes_Gating checks which page each caller reaches.
func TestRoutes_Gating(t *testing.T) {
	tests := []struct {
		name      string
		session   auth.Session
		path      string
		wantCalls []string
		wantNav   []string
	}{
		{"public login", auth.Session{}, "/login", []string{"Login()"}, nil},
		{"anonymous catalog", auth.Session{}, "/marketplaces", nil, []string{auth.DefaultLoginRoute}},
		{"member catalog", session(account.RoleMember), "/marketplaces", []string{"Marketplaces()"}, nil},
		{"decoded slug", session(account.RoleMember), "/category/line%20of%20business", []string{"Category(line of business)"}, nil},
		{"member app", session(account.RoleMember), "/app/a1", []string{"App(a1)"}, nil},
		{"member admin", session(account.RoleMember), "/admin/apps/new", nil, []string{auth.DefaultLandingRoute}},
		{"anonymous admin", auth.Session{}, "/admin", nil, []string{auth.DefaultLoginRoute}},
		{"admin new app", session(account.RoleAdmin), "/admin/apps/new", []string{"AdminAppForm()"}, nil},
		{"admin edit app", session(account.Role("Admin")), "/admin/apps/a1/edit", []string{"AdminAppForm(a1)"}, nil},
		{"admin versions", session(account.RoleAdmin), "/admin/apps/a1/versions", []string{"AdminAppVersions(a1)"}, nil},
		{"admin new marketplace", session(account.RoleAdmin), "/admin/marketplaces/new", []string{"AdminMarketplaceForm()"}, nil},
		{"admin analytics", session(account.RoleAdmin), "/admin/analytics", []string{"AdminAnalytics()"}, nil},
		{"unmatched", session(account.RoleAdmin), "/admin/nope/x/y", []string{"NotFound(/admin/nope/x/y)"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.session)
			if err := f.router.Handle(context.Background(), tt.path); err != nil {
				t.Fatalf("Handle: %v", err)
			}
			if !slices.Equal(f.pages.calls, tt.wantCalls) {
				t.Errorf("calls = %v, want %v", f.pages.calls, tt.wantCalls)
			}
			if !slices.Equal(f.nav.targets, tt.wantNav) {
				t.Errorf("navigations = %v, want %v", f.nav.targets, tt.wantNav)
			}
		})
	}
}

func TestBuild(t *testing.T) {
	tests := []struct {
		pattern string
		args    []string
		want    string
	}{
		{App, []string{"a1"}, "/app/a1"},
		{Category, []string{"line of business"}, "/category/line%20of%20business"},
		{AdminAppVersions, []string{"x/y"}, "/admin/apps/x%2Fy/versions"},
		{Marketplaces, nil, "/marketplaces"},
	}
	for _, tt := range tests {
		if got := Build(tt.pattern, tt.args...); got != tt.want {
			t.Errorf("Build(%q, %v) = %q, want %q", tt.pattern, tt.args, got, tt.want)
		}
	}
}
