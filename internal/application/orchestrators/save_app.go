package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	marketplaceStore "appstore/internal/adapters/storage/marketplace"
	"appstore/internal/domain/app"
	"appstore/internal/domain/marketplace"
)

// ErrUnknownCategory is returned when an app names a marketplace that does not exist.
var ErrUnknownCategory = errors.New("category does not match any marketplace")

// AppStoreForSave defines the store interface needed by SaveApp.
type AppStoreForSave interface {
	GetByID(ctx context.Context, id string) (app.App, error)
	Create(ctx context.Context, a app.App) error
	Update(ctx context.Context, a app.App) error
}

// CategoryLookup resolves marketplaces by slug.
type CategoryLookup interface {
	GetBySlug(ctx context.Context, slug string) (marketplace.Marketplace, error)
}

// SaveAppInput carries the editable fields of an app. An empty ID creates one.
type SaveAppInput struct {
	ID                 string
	Name               string
	Description        string
	Image              string
	Status             string
	CategorySlug       string
	Version            string
	Developer          string
	SystemRequirements string
}

// SaveAppDeps holds dependencies for SaveApp.
type SaveAppDeps struct {
	Apps       AppStoreForSave
	Categories CategoryLookup
	Now        func() time.Time
	GenerateID func() string
}

// ExecuteSaveApp creates or updates an app record.
// PRE: caller is an admin
// POST: the app's category names an existing marketplace
func ExecuteSaveApp(ctx context.Context, input SaveAppInput, deps SaveAppDeps) (app.App, error) {
	now := clock(deps.Now)

	a := app.App{
		ID:                 input.ID,
		Name:               input.Name,
		Description:        input.Description,
		Image:              input.Image,
		Status:             input.Status,
		CategorySlug:       input.CategorySlug,
		Version:            input.Version,
		Developer:          input.Developer,
		SystemRequirements: input.SystemRequirements,
		UpdatedAt:          now(),
	}
	a.Normalize()
	if err := a.Validate(); err != nil {
		return app.App{}, err
	}
	if _, err := deps.Categories.GetBySlug(ctx, a.CategorySlug); err != nil {
		if errors.Is(err, marketplaceStore.ErrNotFound) {
			return app.App{}, ErrUnknownCategory
		}
		return app.App{}, fmt.Errorf("look up category %s: %w", a.CategorySlug, err)
	}

	if a.ID == "" {
		a.ID = idGen(deps.GenerateID)()
		a.CreatedAt = a.UpdatedAt
		if err := deps.Apps.Create(ctx, a); err != nil {
			return app.App{}, fmt.Errorf("create app: %w", err)
		}
		slog.Info("catalog_event", "event", "app_created", "id", a.ID, "category", a.CategorySlug)
		return a, nil
	}

	existing, err := deps.Apps.GetByID(ctx, a.ID)
	if err != nil {
		return app.App{}, err
	}
	a.CreatedAt = existing.CreatedAt
	a.FilePath, a.FileName, a.FileSize, a.FileType = existing.FilePath, existing.FileName, existing.FileSize, existing.FileType
	a.DownloadCount = existing.DownloadCount
	if err := deps.Apps.Update(ctx, a); err != nil {
		return app.App{}, fmt.Errorf("update app %s: %w", a.ID, err)
	}
	slog.Info("catalog_event", "event", "app_updated", "id", a.ID)
	return a, nil
}

// AppStoreForDelete defines the store interface needed by DeleteApp.
type AppStoreForDelete interface {
	GetByID(ctx context.Context, id string) (app.App, error)
	Delete(ctx context.Context, id string) error
}

// BlobDeleter removes stored files.
type BlobDeleter interface {
	Delete(ctx context.Context, key string) error
}

// DeleteAppDeps holds dependencies for DeleteApp.
type DeleteAppDeps struct {
	Apps  AppStoreForDelete
	Blobs BlobDeleter
}

// ExecuteDeleteApp removes an app, its versions and ratings, and its file.
// POST: a file that cannot be removed is logged and left behind
func ExecuteDeleteApp(ctx context.Context, id string, deps DeleteAppDeps) error {
	a, err := deps.Apps.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := deps.Apps.Delete(ctx, id); err != nil {
		return err
	}
	if a.HasFile() && deps.Blobs != nil {
		if err := deps.Blobs.Delete(ctx, a.FilePath); err != nil {
			slog.Warn("blob_delete_failed", "key", a.FilePath, "error", err)
		}
	}
	slog.Info("catalog_event", "event", "app_deleted", "id", id)
	return nil
}
