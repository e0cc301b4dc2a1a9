package projections

import (
	"context"

	appStore "appstore/internal/adapters/storage/app"
	"appstore/internal/application/listutil"
	domainApp "appstore/internal/domain/app"
)

// AdminAppStore interface for the paged admin app list.
type AdminAppStore interface {
	List(ctx context.Context, filter appStore.ListFilter) ([]domainApp.App, error)
	Count(ctx context.Context) (int, error)
}

// GetAdminAppsQuery carries input for the admin apps projection.
type GetAdminAppsQuery struct {
	listutil.PageParams
	listutil.SortParams
}

// GetAdminAppsResult carries one page of apps.
type GetAdminAppsResult struct {
	Apps []domainApp.App
	Page listutil.PageInfo
}

// GetAdminAppsDeps holds dependencies for the admin apps projection.
type GetAdminAppsDeps struct {
	Apps AdminAppStore
}

// QueryGetAdminApps returns one page of every app.
// POST: a page past the end is clamped to the last page
func QueryGetAdminApps(ctx context.Context, query GetAdminAppsQuery, deps GetAdminAppsDeps) (GetAdminAppsResult, error) {
	total, err := deps.Apps.Count(ctx)
	if err != nil {
		return GetAdminAppsResult{}, err
	}
	page := listutil.NewPageInfo(query.Page, query.PerPage, total)
	apps, err := deps.Apps.List(ctx, appStore.ListFilter{
		SortBy: query.Sort,
		Desc:   query.Dir == "desc",
		Limit:  page.PerPage,
		Offset: page.Offset(),
	})
	if err != nil {
		return GetAdminAppsResult{}, err
	}
	return GetAdminAppsResult{Apps: apps, Page: page}, nil
}
