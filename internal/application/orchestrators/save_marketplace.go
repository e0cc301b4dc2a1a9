package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"appstore/internal/domain/marketplace"
)

// MarketplaceStoreForSave defines the store interface needed by SaveMarketplace.
type MarketplaceStoreForSave interface {
	GetByID(ctx context.Context, id string) (marketplace.Marketplace, error)
	Create(ctx context.Context, m marketplace.Marketplace) error
	Update(ctx context.Context, m marketplace.Marketplace, previousSlug string) error
}

// SaveMarketplaceInput carries input for the save-marketplace orchestrator.
// An empty ID creates a marketplace.
type SaveMarketplaceInput struct {
	ID              string
	Name            string
	Slug            string
	Description     string
	IsPublic        bool
	RequireApproval bool
}

// SaveMarketplaceDeps holds dependencies for SaveMarketplace.
type SaveMarketplaceDeps struct {
	Store      MarketplaceStoreForSave
	Now        func() time.Time
	GenerateID func() string
}

// ExecuteSaveMarketplace creates or updates a marketplace.
// PRE: caller is an admin
// POST: slug is derived from the name when blank; apps follow a slug change
func ExecuteSaveMarketplace(ctx context.Context, input SaveMarketplaceInput, deps SaveMarketplaceDeps) (marketplace.Marketplace, error) {
	now := clock(deps.Now)

	m := marketplace.Marketplace{
		ID:              input.ID,
		Name:            input.Name,
		Slug:            input.Slug,
		Description:     input.Description,
		IsPublic:        input.IsPublic,
		RequireApproval: input.RequireApproval,
		UpdatedAt:       now(),
	}
	m.Normalize()
	if err := m.Validate(); err != nil {
		return marketplace.Marketplace{}, err
	}

	if m.ID == "" {
		m.ID = idGen(deps.GenerateID)()
		m.CreatedAt = m.UpdatedAt
		if err := deps.Store.Create(ctx, m); err != nil {
			return marketplace.Marketplace{}, err
		}
		slog.Info("catalog_event", "event", "marketplace_created", "id", m.ID, "slug", m.Slug)
		return m, nil
	}

	existing, err := deps.Store.GetByID(ctx, m.ID)
	if err != nil {
		return marketplace.Marketplace{}, err
	}
	m.CreatedAt = existing.CreatedAt
	if err := deps.Store.Update(ctx, m, existing.Slug); err != nil {
		return marketplace.Marketplace{}, fmt.Errorf("update marketplace %s: %w", m.ID, err)
	}
	slog.Info("catalog_event", "event", "marketplace_updated", "id", m.ID, "slug", m.Slug, "previous_slug", existing.Slug)
	return m, nil
}

// MarketplaceStoreForDelete defines the store interface needed by DeleteMarketplace.
type MarketplaceStoreForDelete interface {
	Delete(ctx context.Context, id string) error
}

// ExecuteDeleteMarketplace removes a marketplace. Its apps keep their
// category slug and reappear if a marketplace with that slug is recreated.
func ExecuteDeleteMarketplace(ctx context.Context, id string, store MarketplaceStoreForDelete) error {
	if err := store.Delete(ctx, id); err != nil {
		return err
	}
	slog.Info("catalog_event", "event", "marketplace_deleted", "id", id)
	return nil
}
