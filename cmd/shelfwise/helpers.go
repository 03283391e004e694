package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/shelfwise/shelfwise/internal/config"
	"github.com/shelfwise/shelfwise/internal/service"
	"github.com/shelfwise/shelfwise/internal/storage"
	"github.com/shelfwise/shelfwise/internal/stores"
)

// initStorage loads configuration and opens the migrated database. Callers
// own the returned storage and must Close it.
func initStorage(ctx context.Context) (service.Storage, config.Settings, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, config.Settings{}, err
	}

	store, err := storage.NewSQLiteStorage(settings.DatabasePath)
	if err != nil {
		return nil, config.Settings{}, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, config.Settings{}, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, settings, nil
}

// storeDisplayName resolves a store ID to its display name rendered in the
// store's brand color, falling back to the raw ID for unknown stores.
func storeDisplayName(normalizer *stores.Normalizer, storeID string) string {
	s, ok := normalizer.Get(storeID)
	if !ok {
		return storeID
	}
	if s.Color == "" {
		return s.DisplayName
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(s.Color)).Render(s.DisplayName)
}

