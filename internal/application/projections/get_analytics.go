package projections

import (
	"context"
	"sort"
	"strings"

	appStore "appstore/internal/adapters/storage/app"
	marketplaceStore "appstore/internal/adapters/storage/marketplace"
	domainApp "appstore/internal/domain/app"
	domainMarketplace "appstore/internal/domain/marketplace"
	domainRating "appstore/internal/domain/rating"
)

// Analytics list sizes.
const (
	TopListSize    = 5
	NewestListSize = 8
)

// UncategorizedSlug groups apps without a category in per-category totals.
const UncategorizedSlug = "uncategorized"

// RatedApp is an app with its average rating.
type RatedApp struct {
	domainApp.App
	Rating domainRating.Summary
}

// CategoryDownloads is the download total of one category.
type CategoryDownloads struct {
	Slug      string
	Name      string
	Downloads int64
}

// GetAnalyticsResult carries the output of the analytics projection.
type GetAnalyticsResult struct {
	TopDownloaded     []domainApp.App
	TopRated          []RatedApp
	CategoryDownloads []CategoryDownloads
	Newest            []domainApp.App
	TotalDownloads    int64
}

// GetAnalyticsDeps holds dependencies for the analytics projection.
type GetAnalyticsDeps struct {
	Apps         AppStore
	Ratings      RatingStore
	Marketplaces MarketplaceStore
}

// QueryGetAnalytics loads every app, rating summary and marketplace and
// aggregates them with BuildAnalytics.
func QueryGetAnalytics(ctx context.Context, deps GetAnalyticsDeps) (GetAnalyticsResult, error) {
	apps, err := deps.Apps.List(ctx, appStore.ListFilter{})
	if err != nil {
		return GetAnalyticsResult{}, err
	}
	summaries, err := deps.Ratings.Summaries(ctx)
	if err != nil {
		return GetAnalyticsResult{}, err
	}
	cats, err := deps.Marketplaces.List(ctx, marketplaceStore.ListOptions{})
	if err != nil {
		return GetAnalyticsResult{}, err
	}
	return BuildAnalytics(apps, summaries, cats), nil
}

// BuildAnalytics aggregates fetched rows. It does no I/O.
//
//   - TopDownloaded: the five most downloaded apps, dropping those never downloaded.
//   - TopRated: the five best average ratings among rated apps.
//   - CategoryDownloads: download totals per category slug, named from cats.
//   - Newest: the eight most recently created apps.
func BuildAnalytics(apps []domainApp.App, summaries map[string]domainRating.Summary, cats []domainMarketplace.Marketplace) GetAnalyticsResult {
	var res GetAnalyticsResult

	byDownloads := append([]domainApp.App(nil), apps...)
	sort.SliceStable(byDownloads, func(i, j int) bool {
		return byDownloads[i].DownloadCount > byDownloads[j].DownloadCount
	})
	for _, a := range head(byDownloads, TopListSize) {
		if a.DownloadCount > 0 {
			res.TopDownloaded = append(res.TopDownloaded, a)
		}
	}

	var rated []RatedApp
	for _, a := range apps {
		if s, ok := summaries[a.ID]; ok && s.Count > 0 {
			rated = append(rated, RatedApp{App: a, Rating: s})
		}
	}
	sort.SliceStable(rated, func(i, j int) bool {
		return rated[i].Rating.Average > rated[j].Rating.Average
	})
	res.TopRated = head(rated, TopListSize)

	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.Slug] = c.Name
	}
	totals := map[string]int64{}
	for _, a := range apps {
		slug := a.CategorySlug
		if slug == "" {
			slug = UncategorizedSlug
		}
		totals[slug] += a.DownloadCount
		res.TotalDownloads += a.DownloadCount
	}
	for slug, n := range totals {
		name, ok := names[slug]
		if !ok {
			name = slug
		}
		res.CategoryDownloads = append(res.CategoryDownloads, CategoryDownloads{Slug: slug, Name: name, Downloads: n})
	}
	sort.Slice(res.CategoryDownloads, func(i, j int) bool {
		a, b := res.CategoryDownloads[i], res.CategoryDownloads[j]
		if a.Downloads != b.Downloads {
			return a.Downloads > b.Downloads
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})

	newest := append([]domainApp.App(nil), apps...)
	sort.SliceStable(newest, func(i, j int) bool {
		ti, tj := newest[i].CreatedAt, newest[j].CreatedAt
		if ti.IsZero() {
			ti = newest[i].UpdatedAt
		}
		if tj.IsZero() {
			tj = newest[j].UpdatedAt
		}
		return ti.After(tj)
	})
	res.Newest = head(newest, NewestListSize)
	return res
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
