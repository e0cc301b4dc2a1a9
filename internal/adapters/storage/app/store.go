package app

import (
	"context"

	domain "appstore/internal/domain/app"
)

// Sort columns accepted by List.
const (
	SortName      = "name"
	SortUpdatedAt = "updated_at"
)

// Store persists App state.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.App, error)
	Create(ctx context.Context, value domain.App) error
	Update(ctx context.Context, value domain.App) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]domain.App, error)
	Count(ctx context.Context) (int, error)
	SetFile(ctx context.Context, id string, file domain.FileInfo) error
	// IncrementDownloads adds one to the download counter atomically and
	// returns the new value.
	IncrementDownloads(ctx context.Context, id string) (int64, error)
}

// VersionStore persists app versions.
type VersionStore interface {
	// AddVersion inserts v and sets the app's current version in one transaction.
	AddVersion(ctx context.Context, v domain.Version) error
	ListVersions(ctx context.Context, appID string) ([]domain.Version, error)
}

// ListFilter carries filtering parameters for List operations.
type ListFilter struct {
	CategorySlug string
	SortBy       string // SortName (default) or SortUpdatedAt
	Desc         bool
	Limit        int
	Offset       int
}
