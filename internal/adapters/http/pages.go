package web

import (
	"context"
	"errors"
	"net/http"

	marketplaceStore "appstore/internal/adapters/storage/marketplace"
	"appstore/internal/application/listutil"
	"appstore/internal/application/orchestrators"
	"appstore/internal/application/projections"
	"appstore/internal/application/routes"
	"appstore/internal/auth"
	domainApp "appstore/internal/domain/app"
	domainMarketplace "appstore/internal/domain/marketplace"
)

// pages implements routes.Pages over HTTP.
type pages struct {
	s *Server
}

var _ routes.Pages = (*pages)(nil)

type authForm struct {
	Email    string
	FullName string
	Token    string
}

type listData[T any] struct {
	Items  []T
	Params listutil.ListParams
}

type appFormData struct {
	App        domainApp.App
	Categories []domainMarketplace.Marketplace
	IsNew      bool
}

type versionsData struct {
	App      domainApp.App
	Versions []domainApp.Version
	Form     domainApp.Version
}

type adminAppsData struct {
	projections.GetAdminAppsResult
	Params listutil.ListParams
}

// show renders name for the request behind ctx.
func (s *Server) show(ctx context.Context, status int, name string, p page) error {
	ex, err := exchangeFrom(ctx)
	if err != nil {
		return err
	}
	return s.views.render(ex, status, name, p)
}

func (p *pages) Login(ctx context.Context) error {
	if landing, ok := p.signedIn(ctx); ok {
		return redirect(ctx, landing)
	}
	return p.s.show(ctx, http.StatusOK, "login.html", page{Title: "Sign in", Data: authForm{}})
}

func (p *pages) SignUp(ctx context.Context) error {
	if landing, ok := p.signedIn(ctx); ok {
		return redirect(ctx, landing)
	}
	return p.s.show(ctx, http.StatusOK, "signup.html", page{Title: "Create account", Data: authForm{}})
}

// ResetPassword shows the request form, or the new password form when the
// request carries a reset token.
func (p *pages) ResetPassword(ctx context.Context) error {
	ex, err := exchangeFrom(ctx)
	if err != nil {
		return err
	}
	return p.s.show(ctx, http.StatusOK, "reset_password.html", page{
		Title: "Reset password",
		Data:  authForm{Token: ex.r.URL.Query().Get("token")},
	})
}

func (p *pages) signedIn(ctx context.Context) (string, bool) {
	sess := p.s.res.ResolveAccount(ctx)
	if !sess.Authenticated() {
		return "", false
	}
	return orchestrators.LandingFor(sess), true
}

func (p *pages) Marketplaces(ctx context.Context, sess auth.Session) error {
	ex, err := exchangeFrom(ctx)
	if err != nil {
		return err
	}
	params := listutil.ParseListParams(ex.r.URL.Query(), projections.MarketplaceSortColumns)
	list, err := projections.QueryGetMarketplaces(ctx, projections.GetMarketplacesQuery{
		Sort:   params.Sort,
		Dir:    params.Dir,
		Search: params.Search,
	}, projections.GetMarketplacesDeps{Store: p.s.stores.Marketplaces})
	if err != nil {
		return err
	}
	return p.s.show(ctx, http.StatusOK, "marketplaces.html", page{
		Title:   "Marketplaces",
		Session: sess,
		Data:    listData[domainMarketplace.Marketplace]{Items: list, Params: params},
	})
}

type categoryData struct {
	projections.GetCategoryAppsResult
	Params listutil.ListParams
}

func (p *pages) Category(ctx context.Context, sess auth.Session, slug string) error {
	ex, err := exchangeFrom(ctx)
	if err != nil {
		return err
	}
	params := listutil.ParseListParams(ex.r.URL.Query(), projections.AppSortColumns)
	res, err := projections.QueryGetCategoryApps(ctx, projections.GetCategoryAppsQuery{
		Slug:   slug,
		Sort:   params.Sort,
		Dir:    params.Dir,
		Search: params.Search,
	}, projections.GetCategoryAppsDeps{
		Marketplaces: p.s.stores.Marketplaces,
		Apps:         p.s.stores.Apps,
		Ratings:      p.s.stores.Ratings,
	})
	if errors.Is(err, marketplaceStore.ErrNotFound) {
		return p.notFound(ctx, sess)
	}
	if err != nil {
		return err
	}
	return p.s.show(ctx, http.StatusOK, "category.html", page{
		Title:   res.Marketplace.Name,
		Session: sess,
		Data:    categoryData{GetCategoryAppsResult: res, Params: params},
	})
}

func (p *pages) App(ctx context.Context, sess auth.Session, id string) error {
	return p.s.showApp(ctx, sess, id, http.StatusOK, "")
}

// showApp renders the app details page, with errMsg above the actions.
func (s *Server) showApp(ctx context.Context, sess auth.Session, id string, status int, errMsg string) error {
	res, err := projections.QueryGetAppDetails(ctx, id, projections.GetAppDetailsDeps{
		Apps:         s.stores.Apps,
		Marketplaces: s.stores.Marketplaces,
		Versions:     s.stores.Apps,
		Ratings:      s.stores.Ratings,
	})
	if errors.Is(err, domainApp.ErrNotFound) {
		return s.pagesReg.notFound(ctx, sess)
	}
	if err != nil {
		return err
	}
	return s.show(ctx, status, "app.html", page{
		Title:   res.App.Name,
		Session: sess,
		Error:   errMsg,
		Data:    res,
	})
}

func (p *pages) AdminDashboard(ctx context.Context, sess auth.Session) error {
	res, err := projections.QueryGetDashboard(ctx, projections.GetDashboardDeps{
		Apps:         p.s.stores.Apps,
		Marketplaces: p.s.stores.Marketplaces,
		Accounts:     p.s.stores.Accounts,
	})
	if err != nil {
		return err
	}
	return p.s.show(ctx, http.StatusOK, "admin_dashboard.html", page{Title: "Admin", Session: sess, Data: res})
}

func (p *pages) AdminApps(ctx context.Context, sess auth.Session) error {
	ex, err := exchangeFrom(ctx)
	if err != nil {
		return err
	}
	params := listutil.ParseListParams(ex.r.URL.Query(), projections.AppSortColumns)
	res, err := projections.QueryGetAdminApps(ctx, projections.GetAdminAppsQuery{
		PageParams: params.PageParams,
		SortParams: params.SortParams,
	}, projections.GetAdminAppsDeps{Apps: p.s.stores.Apps})
	if err != nil {
		return err
	}
	params.Page = res.Page.Page
	return p.s.show(ctx, http.StatusOK, "admin_apps.html", page{
		Title:   "Apps",
		Session: sess,
		Data:    adminAppsData{GetAdminAppsResult: res, Params: params},
	})
}

func (p *pages) AdminAppForm(ctx context.Context, sess auth.Session, id string) error {
	if id == "" {
		return p.s.showAppForm(ctx, sess, domainApp.App{Status: domainApp.StatusAvailable}, true, http.StatusOK, "")
	}
	a, err := p.s.stores.Apps.GetByID(ctx, id)
	if errors.Is(err, domainApp.ErrNotFound) {
		return p.notFound(ctx, sess)
	}
	if err != nil {
		return err
	}
	return p.s.showAppForm(ctx, sess, a, false, http.StatusOK, "")
}

func (s *Server) showAppForm(ctx context.Context, sess auth.Session, a domainApp.App, isNew bool, status int, errMsg string) error {
	cats, err := s.stores.Marketplaces.List(ctx, marketplaceStore.ListOptions{})
	if err != nil {
		return err
	}
	title := "Edit " + a.Name
	if isNew {
		title = "New app"
	}
	return s.show(ctx, status, "admin_app_form.html", page{
		Title:   title,
		Session: sess,
		Error:   errMsg,
		Data:    appFormData{App: a, Categories: cats, IsNew: isNew},
	})
}

func (p *pages) AdminAppVersions(ctx context.Context, sess auth.Session, id string) error {
	return p.s.showVersions(ctx, sess, id, domainApp.Version{}, http.StatusOK, "")
}

func (s *Server) showVersions(ctx context.Context, sess auth.Session, id string, form domainApp.Version, status int, errMsg string) error {
	a, err := s.stores.Apps.GetByID(ctx, id)
	if errors.Is(err, domainApp.ErrNotFound) {
		return s.pagesReg.notFound(ctx, sess)
	}
	if err != nil {
		return err
	}
	versions, err := s.stores.Apps.ListVersions(ctx, id)
	if err != nil {
		return err
	}
	return s.show(ctx, status, "admin_versions.html", page{
		Title:   a.Name + " versions",
		Session: sess,
		Error:   errMsg,
		Data:    versionsData{App: a, Versions: versions, Form: form},
	})
}

func (p *pages) AdminMarketplaces(ctx context.Context, sess auth.Session) error {
	ex, err := exchangeFrom(ctx)
	if err != nil {
		return err
	}
	params := listutil.ParseListParams(ex.r.URL.Query(), projections.MarketplaceSortColumns)
	list, err := projections.QueryGetMarketplaces(ctx, projections.GetMarketplacesQuery{
		Sort:   params.Sort,
		Dir:    params.Dir,
		Search: params.Search,
	}, projections.GetMarketplacesDeps{Store: p.s.stores.Marketplaces})
	if err != nil {
		return err
	}
	return p.s.show(ctx, http.StatusOK, "admin_marketplaces.html", page{
		Title:   "Marketplaces",
		Session: sess,
		Data:    listData[domainMarketplace.Marketplace]{Items: list, Params: params},
	})
}

func (p *pages) AdminMarketplaceForm(ctx context.Context, sess auth.Session, id string) error {
	if id == "" {
		return p.s.showMarketplaceForm(ctx, sess, domainMarketplace.Marketplace{}, true, http.StatusOK, "")
	}
	m, err := p.s.stores.Marketplaces.GetByID(ctx, id)
	if errors.Is(err, marketplaceStore.ErrNotFound) {
		return p.notFound(ctx, sess)
	}
	if err != nil {
		return err
	}
	return p.s.showMarketplaceForm(ctx, sess, m, false, http.StatusOK, "")
}

type marketplaceFormData struct {
	Marketplace domainMarketplace.Marketplace
	IsNew       bool
}

func (s *Server) showMarketplaceForm(ctx context.Context, sess auth.Session, m domainMarketplace.Marketplace, isNew bool, status int, errMsg string) error {
	title := "Edit " + m.Name
	if isNew {
		title = "New marketplace"
	}
	return s.show(ctx, status, "admin_marketplace_form.html", page{
		Title:   title,
		Session: sess,
		Error:   errMsg,
		Data:    marketplaceFormData{Marketplace: m, IsNew: isNew},
	})
}

func (p *pages) AdminAnalytics(ctx context.Context, sess auth.Session) error {
	res, err := projections.QueryGetAnalytics(ctx, projections.GetAnalyticsDeps{
		Apps:         p.s.stores.Apps,
		Ratings:      p.s.stores.Ratings,
		Marketplaces: p.s.stores.Marketplaces,
	})
	if err != nil {
		return err
	}
	return p.s.show(ctx, http.StatusOK, "admin_analytics.html", page{Title: "Analytics", Session: sess, Data: res})
}

// NotFound is the router fallback for unmatched paths.
func (p *pages) NotFound(ctx context.Context, _ string) error {
	return p.notFound(ctx, p.s.res.ResolveAccount(ctx))
}

func (p *pages) notFound(ctx context.Context, sess auth.Session) error {
	ex, err := exchangeFrom(ctx)
	if err != nil {
		return err
	}
	return p.s.show(ctx, http.StatusNotFound, "not_found.html", page{
		Title:   "Not found",
		Session: sess,
		Data:    ex.r.URL.Path,
	})
}
