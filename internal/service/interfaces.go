// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/shelfwise/shelfwise/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Receipt operations
	SaveReceipt(ctx context.Context, receipt *model.Receipt) error
	GetReceiptByID(ctx context.Context, id string) (*model.Receipt, error)
	GetReceiptByHash(ctx context.Context, hash string) (*model.Receipt, error)
	ListReceipts(ctx context.Context, limit int) ([]model.Receipt, error)

	// List item operations
	SaveListItem(ctx context.Context, item *model.ListItem) error
	GetOpenListItems(ctx context.Context) ([]model.ListItem, error)
	GetListItemByID(ctx context.Context, id string) (*model.ListItem, error)
	MarkListItemChecked(ctx context.Context, id string) error

	// Pantry operations
	SavePantryItem(ctx context.Context, item *model.PantryItem) error
	GetActivePantryItems(ctx context.Context, userID string) ([]model.PantryItem, error)
	GetPantryItemByID(ctx context.Context, id string) (*model.PantryItem, error)
	RecordPantryPurchase(ctx context.Context, id string, price model.PriceObservation) error
	ApplyMergePlan(ctx context.Context, userID string, plan model.MergePlan) error

	// Learned mapping operations
	GetMappings(ctx context.Context, userID string) (map[string]string, error)
	ListMappings(ctx context.Context, userID string) ([]model.LearnedMapping, error)
	SaveMapping(ctx context.Context, mapping *model.LearnedMapping) error
	DeleteMapping(ctx context.Context, userID, receiptName string) error
	TouchMapping(ctx context.Context, userID, receiptName string) error

	// No-match suppressions
	SaveSuppression(ctx context.Context, userID, receiptName string) error
	GetSuppressions(ctx context.Context, userID string) (map[string]bool, error)

	// Pending match operations
	SavePendingMatch(ctx context.Context, match *model.PendingMatch) error
	GetPendingMatch(ctx context.Context, id string) (*model.PendingMatch, error)
	GetPendingMatchesForReceipt(ctx context.Context, receiptID string) ([]model.PendingMatch, error)
	GetOpenPendingMatches(ctx context.Context) ([]model.PendingMatch, error)
	ResolvePendingMatch(ctx context.Context, id string, status model.PendingMatchStatus, resolution *model.ItemRef, resolvedAt time.Time) error

	// Price operations
	SavePriceObservation(ctx context.Context, obs *model.PriceObservation) error
	GetCurrentPrice(ctx context.Context, normalizedName, size, storeID string) (*model.CurrentPrice, error)
	SaveCurrentPrice(ctx context.Context, price *model.CurrentPrice) error
	GetCurrentPricesForItem(ctx context.Context, normalizedName string) ([]model.CurrentPrice, error)
	GetPriceObservations(ctx context.Context, normalizedName string, limit int) ([]model.PriceObservation, error)
	ReassignPriceHistory(ctx context.Context, fromName, toName string) error

	// Store catalog
	GetStores(ctx context.Context) ([]model.Store, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}
