package projections

import (
	"context"
	"strings"

	marketplaceStore "appstore/internal/adapters/storage/marketplace"
	domainMarketplace "appstore/internal/domain/marketplace"
)

// MarketplaceSortColumns are the sort keys the marketplace list accepts.
var MarketplaceSortColumns = []string{marketplaceStore.SortName, marketplaceStore.SortUpdatedAt}

// GetMarketplacesQuery carries input for the marketplaces projection.
type GetMarketplacesQuery struct {
	Sort   string // name (default) or updated_at
	Dir    string // asc (default) or desc
	Search string
}

// GetMarketplacesDeps holds dependencies for the marketplaces projection.
type GetMarketplacesDeps struct {
	Store MarketplaceStore
}

// QueryGetMarketplaces lists marketplaces in the requested order, keeping those
// whose name or description contains Search (case-insensitive).
func QueryGetMarketplaces(ctx context.Context, query GetMarketplacesQuery, deps GetMarketplacesDeps) ([]domainMarketplace.Marketplace, error) {
	all, err := deps.Store.List(ctx, marketplaceStore.ListOptions{SortBy: query.Sort, Desc: query.Dir == "desc"})
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query.Search))
	if q == "" {
		return all, nil
	}
	var out []domainMarketplace.Marketplace
	for _, m := range all {
		if strings.Contains(strings.ToLower(m.Name+" "+m.Description), q) {
			out = append(out, m)
		}
	}
	return out, nil
}
