package rating

import (
	"context"

	domain "appstore/internal/domain/rating"
)

// Store persists Rating state.
type Store interface {
	Add(ctx context.Context, value domain.Rating) error
	ListForApp(ctx context.Context, appID string) ([]domain.Rating, error)
	// Summaries returns count and average per app id for every rated app.
	Summaries(ctx context.Context) (map[string]domain.Summary, error)
}
