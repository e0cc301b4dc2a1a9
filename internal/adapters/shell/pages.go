package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	marketplaceStore "appstore/internal/adapters/storage/marketplace"
	"appstore/internal/application/listutil"
	"appstore/internal/application/orchestrators"
	"appstore/internal/application/projections"
	"appstore/internal/application/routes"
	"appstore/internal/auth"
	domainApp "appstore/internal/domain/app"
)

// pages implements routes.Pages as plain text.
type pages struct {
	sh *Shell
}

var _ routes.Pages = (*pages)(nil)

func heading(w io.Writer, title string) {
	fmt.Fprintf(w, "\n== %s ==\n", title)
}

func table(w io.Writer, fn func(tw *tabwriter.Writer)) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fn(tw)
	tw.Flush()
}

func (p *pages) Login(ctx context.Context) error {
	if sess := p.sh.res.ResolveAccount(ctx); sess.Authenticated() {
		return p.sh.router.NavigateTo(ctx, orchestrators.LandingFor(sess))
	}
	hint := "login <email> <password>"
	if last := p.sh.lastEmail(); last != "" {
		hint = "login <password>   (as " + last + ")"
	}
	p.sh.paint(ctx, routes.Login, func(w io.Writer) {
		heading(w, "Sign in")
		fmt.Fprintf(w, "  %s\n  signup <email> <password> [full name]\n  reset <email>\n", hint)
	})
	return nil
}

func (p *pages) SignUp(ctx context.Context) error {
	p.sh.paint(ctx, routes.SignUp, func(w io.Writer) {
		heading(w, "Create account")
		fmt.Fprintln(w, "  signup <email> <password> [full name]")
	})
	return nil
}

func (p *pages) ResetPassword(ctx context.Context) error {
	p.sh.paint(ctx, routes.ResetPassword, func(w io.Writer) {
		heading(w, "Reset password")
		fmt.Fprintln(w, "  reset <email>")
		fmt.Fprintln(w, "  reset-complete <token> <new password>")
	})
	return nil
}

func (p *pages) Marketplaces(ctx context.Context, sess auth.Session) error {
	q := p.sh.listQuery()
	list, err := projections.QueryGetMarketplaces(ctx, projections.GetMarketplacesQuery{
		Sort:   q.Sort,
		Dir:    q.Dir,
		Search: q.Search,
	}, projections.GetMarketplacesDeps{Store: p.sh.deps.Marketplaces})
	if err != nil {
		return err
	}
	p.sh.paint(ctx, routes.Marketplaces, func(w io.Writer) {
		heading(w, "Marketplaces")
		if q.Search != "" {
			fmt.Fprintf(w, "  matching %q\n", q.Search)
		}
		if len(list) == 0 {
			fmt.Fprintln(w, "  (none)")
			return
		}
		table(w, func(tw *tabwriter.Writer) {
			for _, m := range list {
				fmt.Fprintf(tw, "  %s\t%s\t%s\n", m.Name, routes.Build(routes.Category, m.Slug), m.Visibility())
			}
		})
	})
	return nil
}

func (p *pages) Category(ctx context.Context, sess auth.Session, slug string) error {
	q := p.sh.listQuery()
	res, err := projections.QueryGetCategoryApps(ctx, projections.GetCategoryAppsQuery{
		Slug:   slug,
		Sort:   q.Sort,
		Dir:    q.Dir,
		Search: q.Search,
	}, projections.GetCategoryAppsDeps{
		Marketplaces: p.sh.deps.Marketplaces,
		Apps:         p.sh.deps.Apps,
		Ratings:      p.sh.deps.Ratings,
	})
	if errors.Is(err, marketplaceStore.ErrNotFound) {
		return p.NotFound(ctx, routes.Build(routes.Category, slug))
	}
	if err != nil {
		return err
	}
	p.sh.paint(ctx, routes.Category, func(w io.Writer) {
		heading(w, res.Marketplace.Name)
		if res.Marketplace.Description != "" {
			fmt.Fprintf(w, "  %s\n", res.Marketplace.Description)
		}
		if len(res.Apps) == 0 {
			fmt.Fprintln(w, "  (no apps)")
			return
		}
		table(w, func(tw *tabwriter.Writer) {
			for _, a := range res.Apps {
				fmt.Fprintf(tw, "  %s\t%s\t%.1f (%d)\t%s\n", a.Name, a.Version, a.Rating.Average, a.Rating.Count, routes.Build(routes.App, a.ID))
			}
		})
	})
	return nil
}

func (p *pages) App(ctx context.Context, sess auth.Session, id string) error {
	res, err := projections.QueryGetAppDetails(ctx, id, projections.GetAppDetailsDeps{
		Apps:         p.sh.deps.Apps,
		Marketplaces: p.sh.deps.Marketplaces,
		Versions:     p.sh.deps.Apps,
		Ratings:      p.sh.deps.Ratings,
	})
	if errors.Is(err, domainApp.ErrNotFound) {
		return p.NotFound(ctx, routes.Build(routes.App, id))
	}
	if err != nil {
		return err
	}
	a := res.App
	p.sh.paint(ctx, routes.App, func(w io.Writer) {
		heading(w, a.Name)
		fmt.Fprintf(w, "  %s · %s · v%s · %d downloads\n", res.CategoryName, a.Status, a.Version, a.DownloadCount)
		fmt.Fprintf(w, "  rating %.1f from %d\n", res.Summary.Average, res.Summary.Count)
		if a.Description != "" {
			fmt.Fprintf(w, "\n%s\n", indent(a.Description))
		}
		if a.SystemRequirements != "" {
			fmt.Fprintf(w, "\n  Requirements:\n%s\n", indent(a.SystemRequirements))
		}
		for _, v := range res.Versions {
			fmt.Fprintf(w, "  - %s  %s\n", v.Version, v.CreatedAt.Format("2006-01-02"))
		}
		for _, r := range res.Ratings {
			fmt.Fprintf(w, "  [%d/5] %s\n", r.Score, r.Comment)
		}
		if res.CanDownload {
			fmt.Fprintf(w, "  download  (%s)\n", a.FileName)
		}
		fmt.Fprintln(w, "  rate <1-5> [comment]")
	})
	return nil
}

func (p *pages) AdminDashboard(ctx context.Context, sess auth.Session) error {
	res, err := projections.QueryGetDashboard(ctx, projections.GetDashboardDeps{
		Apps:         p.sh.deps.Apps,
		Marketplaces: p.sh.deps.Marketplaces,
		Accounts:     p.sh.deps.Accounts,
	})
	if err != nil {
		return err
	}
	p.sh.paint(ctx, routes.Admin, func(w io.Writer) {
		heading(w, "Admin")
		fmt.Fprintf(w, "  %d apps, %d marketplaces, %d accounts\n", res.Apps, res.Marketplaces, res.Accounts)
	})
	return nil
}

func (p *pages) AdminApps(ctx context.Context, sess auth.Session) error {
	q := p.sh.listQuery()
	res, err := projections.QueryGetAdminApps(ctx, projections.GetAdminAppsQuery{
		PageParams: listutil.PageParams{Page: q.Page, PerPage: listutil.DefaultPerPage},
		SortParams: listutil.SortParams{Sort: q.Sort, Dir: q.Dir},
	}, projections.GetAdminAppsDeps{Apps: p.sh.deps.Apps})
	if err != nil {
		return err
	}
	p.sh.paint(ctx, routes.AdminApps, func(w io.Writer) {
		heading(w, fmt.Sprintf("Apps (page %d of %d)", res.Page.Page, res.Page.TotalPages))
		table(w, func(tw *tabwriter.Writer) {
			for _, a := range res.Apps {
				fmt.Fprintf(tw, "  %s\t%s\t%s\t%d\n", a.ID, a.Name, a.CategorySlug, a.DownloadCount)
			}
		})
	})
	return nil
}

// AdminAppForm shows the record; editing happens in the web client.
func (p *pages) AdminAppForm(ctx context.Context, sess auth.Session, id string) error {
	if id == "" {
		p.sh.paint(ctx, routes.AdminAppNew, func(w io.Writer) {
			heading(w, "New app")
			fmt.Fprintln(w, "  Apps are created in the web client.")
		})
		return nil
	}
	a, err := p.sh.deps.Apps.GetByID(ctx, id)
	if errors.Is(err, domainApp.ErrNotFound) {
		return p.NotFound(ctx, routes.Build(routes.AdminAppEdit, id))
	}
	if err != nil {
		return err
	}
	p.sh.paint(ctx, routes.AdminAppEdit, func(w io.Writer) {
		heading(w, "Edit "+a.Name)
		table(w, func(tw *tabwriter.Writer) {
			fmt.Fprintf(tw, "  category\t%s\n", a.CategorySlug)
			fmt.Fprintf(tw, "  status\t%s\n", a.Status)
			fmt.Fprintf(tw, "  version\t%s\n", a.Version)
			fmt.Fprintf(tw, "  developer\t%s\n", a.Developer)
			fmt.Fprintf(tw, "  file\t%s (%d bytes)\n", a.FileName, a.FileSize)
		})
	})
	return nil
}

func (p *pages) AdminAppVersions(ctx context.Context, sess auth.Session, id string) error {
	a, err := p.sh.deps.Apps.GetByID(ctx, id)
	if errors.Is(err, domainApp.ErrNotFound) {
		return p.NotFound(ctx, routes.Build(routes.AdminAppVersions, id))
	}
	if err != nil {
		return err
	}
	versions, err := p.sh.deps.Apps.ListVersions(ctx, id)
	if err != nil {
		return err
	}
	p.sh.paint(ctx, routes.AdminAppVersions, func(w io.Writer) {
		heading(w, a.Name+" versions")
		for _, v := range versions {
			fmt.Fprintf(w, "  %s  %s\n", v.Version, v.CreatedAt.Format("2006-01-02"))
		}
	})
	return nil
}

func (p *pages) AdminMarketplaces(ctx context.Context, sess auth.Session) error {
	list, err := p.sh.deps.Marketplaces.List(ctx, marketplaceStore.ListOptions{})
	if err != nil {
		return err
	}
	p.sh.paint(ctx, routes.AdminMarketplaces, func(w io.Writer) {
		heading(w, "Manage marketplaces")
		table(w, func(tw *tabwriter.Writer) {
			for _, m := range list {
				fmt.Fprintf(tw, "  %s\t%s\t%s\n", m.ID, m.Slug, m.Name)
			}
		})
	})
	return nil
}

func (p *pages) AdminMarketplaceForm(ctx context.Context, sess auth.Session, id string) error {
	if id == "" {
		p.sh.paint(ctx, routes.AdminMarketplaceNew, func(w io.Writer) {
			heading(w, "New marketplace")
			fmt.Fprintln(w, "  Marketplaces are created in the web client.")
		})
		return nil
	}
	m, err := p.sh.deps.Marketplaces.GetByID(ctx, id)
	if errors.Is(err, marketplaceStore.ErrNotFound) {
		return p.NotFound(ctx, routes.Build(routes.AdminMarketplaceEdit, id))
	}
	if err != nil {
		return err
	}
	p.sh.paint(ctx, routes.AdminMarketplaceEdit, func(w io.Writer) {
		heading(w, "Edit "+m.Name)
		fmt.Fprintf(w, "  slug %s · %s · approval required: %t\n", m.Slug, m.Visibility(), m.RequireApproval)
	})
	return nil
}

func (p *pages) AdminAnalytics(ctx context.Context, sess auth.Session) error {
	res, err := projections.QueryGetAnalytics(ctx, projections.GetAnalyticsDeps{
		Apps:         p.sh.deps.Apps,
		Ratings:      p.sh.deps.Ratings,
		Marketplaces: p.sh.deps.Marketplaces,
	})
	if err != nil {
		return err
	}
	p.sh.paint(ctx, routes.AdminAnalytics, func(w io.Writer) {
		heading(w, "Analytics")
		fmt.Fprintf(w, "  %d downloads\n", res.TotalDownloads)
		fmt.Fprintln(w, "  Most downloaded:")
		for _, a := range res.TopDownloaded {
			fmt.Fprintf(w, "    %s  %d\n", a.Name, a.DownloadCount)
		}
		fmt.Fprintln(w, "  Top rated:")
		for _, a := range res.TopRated {
			fmt.Fprintf(w, "    %s  %.1f\n", a.Name, a.Rating.Average)
		}
		fmt.Fprintln(w, "  By category:")
		for _, c := range res.CategoryDownloads {
			fmt.Fprintf(w, "    %s  %d\n", c.Name, c.Downloads)
		}
	})
	return nil
}

func (p *pages) NotFound(ctx context.Context, path string) error {
	p.sh.paint(ctx, "", func(w io.Writer) {
		heading(w, "Not found")
		fmt.Fprintf(w, "  nothing at %s\n", path)
	})
	return nil
}

func indent(s string) string {
	return "    " + strings.ReplaceAll(s, "\n", "\n    ")
}
