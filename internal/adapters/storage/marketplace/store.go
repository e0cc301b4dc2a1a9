package marketplace

import (
	"context"

	domain "appstore/internal/domain/marketplace"
)

// Sort columns accepted by List.
const (
	SortName      = "name"
	SortUpdatedAt = "updated_at"
)

// Store persists Marketplace state.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Marketplace, error)
	GetBySlug(ctx context.Context, slug string) (domain.Marketplace, error)
	Create(ctx context.Context, value domain.Marketplace) error
	// Update saves value and moves apps filed under previousSlug to value.Slug.
	Update(ctx context.Context, value domain.Marketplace, previousSlug string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, opts ListOptions) ([]domain.Marketplace, error)
	Count(ctx context.Context) (int, error)
}

// ListOptions controls List ordering.
type ListOptions struct {
	SortBy string // SortName (default) or SortUpdatedAt
	Desc   bool
}
