package projections

import (
	"context"
	"fmt"
)

// GetDashboardDeps holds dependencies for the admin dashboard projection.
type GetDashboardDeps struct {
	Apps         Counter
	Marketplaces Counter
	Accounts     Counter
}

// DashboardResult carries the output of the admin dashboard projection.
type DashboardResult struct {
	Apps         int
	Marketplaces int
	Accounts     int
}

// QueryGetDashboard counts the catalog and the user base.
// PRE: caller is an admin
func QueryGetDashboard(ctx context.Context, deps GetDashboardDeps) (DashboardResult, error) {
	var res DashboardResult
	var err error
	if res.Apps, err = deps.Apps.Count(ctx); err != nil {
		return DashboardResult{}, fmt.Errorf("count apps: %w", err)
	}
	if res.Marketplaces, err = deps.Marketplaces.Count(ctx); err != nil {
		return DashboardResult{}, fmt.Errorf("count marketplaces: %w", err)
	}
	if res.Accounts, err = deps.Accounts.Count(ctx); err != nil {
		return DashboardResult{}, fmt.Errorf("count accounts: %w", err)
	}
	return res, nil
}
