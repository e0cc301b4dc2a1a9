package account

import (
	"context"

	"appstore/internal/auth"
	domain "appstore/internal/domain/account"
)

// Store persists Account state.
type Store interface {
	auth.AccountStore
	SetRole(ctx context.Context, id string, role domain.Role) error
	List(ctx context.Context, filter ListFilter) ([]domain.Account, error)
	Count(ctx context.Context) (int, error)
}

// ListFilter carries filtering parameters for List operations.
type ListFilter struct {
	Limit  int
	Offset int
	Role   domain.Role
}
