package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS receipts (
					id TEXT PRIMARY KEY,
					hash TEXT UNIQUE NOT NULL,
					store_id TEXT,
					store_name TEXT NOT NULL,
					purchased_at DATETIME NOT NULL,
					ingested_at DATETIME NOT NULL,
					lines TEXT NOT NULL
				)`,
				`CREATE INDEX idx_receipts_purchased ON receipts(purchased_at)`,
				`CREATE INDEX idx_receipts_store ON receipts(store_id)`,

				`CREATE TABLE IF NOT EXISTS list_items (
					id TEXT PRIMARY KEY,
					list_id TEXT NOT NULL DEFAULT 'default',
					name TEXT NOT NULL,
					category TEXT,
					size TEXT,
					unit TEXT,
					brand TEXT,
					priority INTEGER DEFAULT 0,
					checked INTEGER DEFAULT 0,
					estimated_price TEXT,
					price_source TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_list_items_checked ON list_items(checked)`,

				`CREATE TABLE IF NOT EXISTS pantry_items (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL,
					category TEXT,
					stock TEXT NOT NULL DEFAULT 'stocked',
					status TEXT NOT NULL DEFAULT 'active',
					price_source TEXT,
					last_price TEXT,
					purchase_count INTEGER DEFAULT 0,
					pinned INTEGER DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					last_purchased_at DATETIME
				)`,
				`CREATE INDEX idx_pantry_items_user ON pantry_items(user_id, status)`,

				`CREATE TABLE IF NOT EXISTS learned_mappings (
					user_id TEXT NOT NULL,
					receipt_name TEXT NOT NULL,
					canonical_name TEXT NOT NULL,
					use_count INTEGER DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					last_used_at DATETIME,
					PRIMARY KEY (user_id, receipt_name)
				)`,

				`CREATE TABLE IF NOT EXISTS no_match_names (
					user_id TEXT NOT NULL,
					receipt_name TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (user_id, receipt_name)
				)`,

				`CREATE TABLE IF NOT EXISTS pending_matches (
					id TEXT PRIMARY KEY,
					receipt_id TEXT NOT NULL,
					position INTEGER NOT NULL,
					status TEXT NOT NULL DEFAULT 'pending',
					line TEXT NOT NULL,
					candidates TEXT NOT NULL,
					resolution_kind TEXT,
					resolution_id TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					resolved_at DATETIME,
					FOREIGN KEY (receipt_id) REFERENCES receipts(id)
				)`,
				`CREATE INDEX idx_pending_matches_receipt ON pending_matches(receipt_id, position)`,
				`CREATE INDEX idx_pending_matches_status ON pending_matches(status)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Price observations and aggregates",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS price_observations (
					id TEXT PRIMARY KEY,
					normalized_name TEXT NOT NULL,
					size TEXT NOT NULL,
					unit TEXT,
					store_id TEXT NOT NULL,
					reporter_id TEXT,
					price TEXT NOT NULL,
					observed_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_observations_item ON price_observations(normalized_name, store_id)`,

				`CREATE TABLE IF NOT EXISTS current_prices (
					normalized_name TEXT NOT NULL,
					size TEXT NOT NULL,
					store_id TEXT NOT NULL,
					unit_price TEXT NOT NULL,
					average_price TEXT NOT NULL,
					min_price TEXT NOT NULL,
					max_price TEXT NOT NULL,
					report_count INTEGER NOT NULL,
					confidence REAL DEFAULT 0,
					avg_weight REAL DEFAULT 1,
					last_seen_at DATETIME NOT NULL,
					PRIMARY KEY (normalized_name, size, store_id)
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Canonical store catalog with seed data",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS stores (
				id TEXT PRIMARY KEY,
				display_name TEXT NOT NULL,
				color TEXT,
				market_share REAL DEFAULT 0,
				aliases TEXT
			)`); err != nil {
				return fmt.Errorf("failed to create stores table: %w", err)
			}

			seeds := []struct {
				id          string
				displayName string
				color       string
				aliases     string
				marketShare float64
			}{
				{"tesco", "Tesco", "#00539F", `["Tesco Express","Tesco Extra","Tesco Metro","Tesco Superstore"]`, 0.27},
				{"sainsburys", "Sainsbury's", "#F06C00", `["Sainsburys Local","J Sainsbury","Sainsburys"]`, 0.15},
				{"asda", "Asda", "#68A51C", `["Asda Superstore","Asda Express"]`, 0.13},
				{"aldi", "Aldi", "#00005F", `["Aldi Stores"]`, 0.10},
				{"morrisons", "Morrisons", "#004F38", `["Wm Morrison","Morrisons Daily"]`, 0.09},
				{"lidl", "Lidl", "#0050AA", `["Lidl GB"]`, 0.08},
				{"coop", "Co-op", "#00B1E7", `["Cooperative Food","The Co-operative"]`, 0.06},
				{"waitrose", "Waitrose", "#81B93F", `["Waitrose & Partners","Little Waitrose"]`, 0.04},
				{"iceland", "Iceland", "#D6001C", `["Iceland Foods"]`, 0.02},
			}

			for _, seed := range seeds {
				if _, err := tx.Exec(
					`INSERT OR IGNORE INTO stores (id, display_name, color, market_share, aliases) VALUES (?, ?, ?, ?, ?)`,
					seed.id, seed.displayName, seed.color, seed.marketShare, seed.aliases,
				); err != nil {
					return fmt.Errorf("failed to seed store %s: %w", seed.id, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// Update version
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	return nil
}
