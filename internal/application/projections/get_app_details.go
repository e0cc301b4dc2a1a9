package projections

import (
	"context"

	domainApp "appstore/internal/domain/app"
	domainRating "appstore/internal/domain/rating"
)

// GetAppDetailsDeps holds dependencies for the app details projection.
type GetAppDetailsDeps struct {
	Apps         AppStore
	Marketplaces MarketplaceStore
	Versions     VersionStore
	Ratings      RatingStore
}

// GetAppDetailsResult carries the output of the app details projection.
// Description, SystemRequirements and release notes are raw markdown.
type GetAppDetailsResult struct {
	App          domainApp.App
	CategoryName string // falls back to the slug when the marketplace is gone
	Versions     []domainApp.Version
	Ratings      []domainRating.Rating
	Summary      domainRating.Summary
	CanDownload  bool
}

// QueryGetAppDetails loads one app with its versions and ratings, newest first.
func QueryGetAppDetails(ctx context.Context, appID string, deps GetAppDetailsDeps) (GetAppDetailsResult, error) {
	a, err := deps.Apps.GetByID(ctx, appID)
	if err != nil {
		return GetAppDetailsResult{}, err
	}
	versions, err := deps.Versions.ListVersions(ctx, a.ID)
	if err != nil {
		return GetAppDetailsResult{}, err
	}
	ratings, err := deps.Ratings.ListForApp(ctx, a.ID)
	if err != nil {
		return GetAppDetailsResult{}, err
	}

	name := a.CategorySlug
	if m, err := deps.Marketplaces.GetBySlug(ctx, a.CategorySlug); err == nil {
		name = m.Name
	}
	return GetAppDetailsResult{
		App:          a,
		CategoryName: name,
		Versions:     versions,
		Ratings:      ratings,
		Summary:      domainRating.Summarize(ratings),
		CanDownload:  a.HasFile(),
	}, nil
}
