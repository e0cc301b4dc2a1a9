package projections

import (
	"context"

	appStore "appstore/internal/adapters/storage/app"
	marketplaceStore "appstore/internal/adapters/storage/marketplace"
	domainApp "appstore/internal/domain/app"
	domainMarketplace "appstore/internal/domain/marketplace"
	domainRating "appstore/internal/domain/rating"
)

// MarketplaceStore interface for marketplace queries.
type MarketplaceStore interface {
	GetBySlug(ctx context.Context, slug string) (domainMarketplace.Marketplace, error)
	List(ctx context.Context, opts marketplaceStore.ListOptions) ([]domainMarketplace.Marketplace, error)
}

// AppStore interface for app queries.
type AppStore interface {
	GetByID(ctx context.Context, id string) (domainApp.App, error)
	List(ctx context.Context, filter appStore.ListFilter) ([]domainApp.App, error)
}

// VersionStore interface for version queries.
type VersionStore interface {
	ListVersions(ctx context.Context, appID string) ([]domainApp.Version, error)
}

// RatingStore interface for rating queries.
type RatingStore interface {
	ListForApp(ctx context.Context, appID string) ([]domainRating.Rating, error)
	Summaries(ctx context.Context) (map[string]domainRating.Summary, error)
}

// Counter is any store that can count its rows.
type Counter interface {
	Count(ctx context.Context) (int, error)
}
