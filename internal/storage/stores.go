package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shelfwise/shelfwise/internal/model"
)

// GetStores returns the canonical store catalog, highest market share first.
func (s *SQLiteStorage) GetStores(ctx context.Context) ([]model.Store, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getStoresTx(ctx, s.db)
}

func (s *SQLiteStorage) getStoresTx(ctx context.Context, q queryable) ([]model.Store, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, display_name, color, market_share, aliases
		FROM stores
		ORDER BY market_share DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get stores: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stores []model.Store
	for rows.Next() {
		var store model.Store
		var aliases string
		if err := rows.Scan(&store.ID, &store.DisplayName, &store.Color, &store.MarketShare, &aliases); err != nil {
			return nil, fmt.Errorf("failed to scan store: %w", err)
		}
		if aliases != "" {
			if err := json.Unmarshal([]byte(aliases), &store.Aliases); err != nil {
				return nil, fmt.Errorf("failed to unmarshal store aliases: %w", err)
			}
		}
		stores = append(stores, store)
	}
	return stores, rows.Err()
}
