// Package routes is the application's route table. The web server and the
// terminal shell register the same table against their own Pages.
package routes

import (
	"context"
	"net/url"
	"strings"

	"appstore/internal/auth"
	"appstore/internal/router"
)

// Route patterns.
const (
	Root                 = "/"
	Login                = "/login"
	SignUp               = "/signup"
	ResetPassword        = "/reset-password"
	Marketplaces         = "/marketplaces"
	Category             = "/category/:slug"
	App                  = "/app/:id"
	Admin                = "/admin"
	AdminApps            = "/admin/apps"
	AdminAppNew          = "/admin/apps/new"
	AdminAppEdit         = "/admin/apps/:id/edit"
	AdminAppVersions     = "/admin/apps/:id/versions"
	AdminMarketplaces    = "/admin/marketplaces"
	AdminMarketplaceNew  = "/admin/marketplaces/new"
	AdminMarketplaceEdit = "/admin/marketplaces/:id/edit"
	AdminAnalytics       = "/admin/analytics"
)

// Pages renders the views behind the route table. Guarded pages receive the
// resolved session; id and slug arguments are already percent-decoded.
type Pages interface {
	Login(ctx context.Context) error
	SignUp(ctx context.Context) error
	ResetPassword(ctx context.Context) error

	Marketplaces(ctx context.Context, s auth.Session) error
	Category(ctx context.Context, s auth.Session, slug string) error
	App(ctx context.Context, s auth.Session, id string) error

	AdminDashboard(ctx context.Context, s auth.Session) error
	AdminApps(ctx context.Context, s auth.Session) error
	// AdminAppForm renders the create form when id is empty.
	AdminAppForm(ctx context.Context, s auth.Session, id string) error
	AdminAppVersions(ctx context.Context, s auth.Session, id string) error
	AdminMarketplaces(ctx context.Context, s auth.Session) error
	AdminMarketplaceForm(ctx context.Context, s auth.Session, id string) error
	AdminAnalytics(ctx context.Context, s auth.Session) error

	NotFound(ctx context.Context, path string) error
}

// Deps holds what Register wires into the handlers.
type Deps struct {
	Guard     *auth.Guard
	Resolver  auth.SessionResolver
	Navigator auth.Navigator
	Pages     Pages
}

// Register appends the route table to r. Literal patterns that share a prefix
// with a parameterised one are registered first.
// PRE: every field of deps is non-nil
func Register(r *router.Router, deps Deps) {
	g, p := deps.Guard, deps.Pages

	r.Register(Root, func(ctx context.Context, _ router.Params) error {
		target := g.LoginRoute()
		if deps.Resolver.ResolveAccount(ctx).Authenticated() {
			target = g.LandingRoute()
		}
		return deps.Navigator.NavigateTo(ctx, target)
	})
	r.Register(Login, func(ctx context.Context, _ router.Params) error { return p.Login(ctx) })
	r.Register(SignUp, func(ctx context.Context, _ router.Params) error { return p.SignUp(ctx) })
	r.Register(ResetPassword, func(ctx context.Context, _ router.Params) error { return p.ResetPassword(ctx) })

	r.Register(Marketplaces, authenticated(g, plain(p.Marketplaces)))
	r.Register(Category, authenticated(g, withParam("slug", p.Category)))
	r.Register(App, authenticated(g, withParam("id", p.App)))

	r.Register(Admin, admin(g, plain(p.AdminDashboard)))
	r.Register(AdminApps, admin(g, plain(p.AdminApps)))
	r.Register(AdminAppNew, admin(g, plain(func(ctx context.Context, s auth.Session) error {
		return p.AdminAppForm(ctx, s, "")
	})))
	r.Register(AdminAppEdit, admin(g, withParam("id", p.AdminAppForm)))
	r.Register(AdminAppVersions, admin(g, withParam("id", p.AdminAppVersions)))
	r.Register(AdminMarketplaces, admin(g, plain(p.AdminMarketplaces)))
	r.Register(AdminMarketplaceNew, admin(g, plain(func(ctx context.Context, s auth.Session) error {
		return p.AdminMarketplaceForm(ctx, s, "")
	})))
	r.Register(AdminMarketplaceEdit, admin(g, withParam("id", p.AdminMarketplaceForm)))
	r.Register(AdminAnalytics, admin(g, plain(p.AdminAnalytics)))
}

// Build fills the parameter segments of pattern with args, in order, and
// returns the path. Missing args leave the segment empty.
func Build(pattern string, args ...string) string {
	segs := strings.Split(pattern, "/")
	for i, seg := range segs {
		if !strings.HasPrefix(seg, router.ParamPrefix) {
			continue
		}
		v := ""
		if len(args) > 0 {
			v, args = url.PathEscape(args[0]), args[1:]
		}
		segs[i] = v
	}
	return strings.Join(segs, "/")
}

// NotFound adapts Pages.NotFound to the router's fallback.
func NotFound(p Pages) router.NotFoundHandler {
	return p.NotFound
}

type sessionPage func(ctx context.Context, s auth.Session, params router.Params) error

func plain(page func(context.Context, auth.Session) error) sessionPage {
	return func(ctx context.Context, s auth.Session, _ router.Params) error {
		return page(ctx, s)
	}
}

func withParam(name string, page func(context.Context, auth.Session, string) error) sessionPage {
	return func(ctx context.Context, s auth.Session, params router.Params) error {
		return page(ctx, s, params[name])
	}
}

func authenticated(g *auth.Guard, page sessionPage) router.Handler {
	return func(ctx context.Context, params router.Params) error {
		_, err := g.RequireAuthenticated(ctx, func(ctx context.Context, s auth.Session) error {
			return page(ctx, s, params)
		})
		return err
	}
}

func admin(g *auth.Guard, page sessionPage) router.Handler {
	return func(ctx context.Context, params router.Params) error {
		_, err := g.RequireAdmin(ctx, func(ctx context.Context, s auth.Session) error {
			return page(ctx, s, params)
		})
		return err
	}
}
