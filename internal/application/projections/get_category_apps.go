package projections

import (
	"context"

	appStore "appstore/internal/adapters/storage/app"
	domainApp "appstore/internal/domain/app"
	domainMarketplace "appstore/internal/domain/marketplace"
	domainRating "appstore/internal/domain/rating"
)

// AppSortColumns are the sort keys the app lists accept.
var AppSortColumns = []string{appStore.SortName, appStore.SortUpdatedAt}

// GetCategoryAppsQuery carries input for the category apps projection.
type GetCategoryAppsQuery struct {
	Slug   string
	Sort   string
	Dir    string
	Search string
}

// AppCard is an app with its rating summary, as listed in a category.
type AppCard struct {
	domainApp.App
	Rating domainRating.Summary
}

// GetCategoryAppsResult carries the output of the category apps projection.
type GetCategoryAppsResult struct {
	Marketplace domainMarketplace.Marketplace
	Apps        []AppCard
}

// GetCategoryAppsDeps holds dependencies for the category apps projection.
type GetCategoryAppsDeps struct {
	Marketplaces MarketplaceStore
	Apps         AppStore
	Ratings      RatingStore // optional: nil leaves summaries empty
}

// QueryGetCategoryApps lists the apps of one marketplace, filtered by Search
// over name and description.
// POST: returns the marketplace store's not-found error for unknown slugs
func QueryGetCategoryApps(ctx context.Context, query GetCategoryAppsQuery, deps GetCategoryAppsDeps) (GetCategoryAppsResult, error) {
	m, err := deps.Marketplaces.GetBySlug(ctx, query.Slug)
	if err != nil {
		return GetCategoryAppsResult{}, err
	}
	apps, err := deps.Apps.List(ctx, appStore.ListFilter{
		CategorySlug: m.Slug,
		SortBy:       query.Sort,
		Desc:         query.Dir == "desc",
	})
	if err != nil {
		return GetCategoryAppsResult{}, err
	}

	var summaries map[string]domainRating.Summary
	if deps.Ratings != nil {
		if summaries, err = deps.Ratings.Summaries(ctx); err != nil {
			return GetCategoryAppsResult{}, err
		}
	}

	result := GetCategoryAppsResult{Marketplace: m}
	for _, a := range apps {
		if !a.Matches(query.Search) {
			continue
		}
		result.Apps = append(result.Apps, AppCard{App: a, Rating: summaries[a.ID]})
	}
	return result, nil
}
