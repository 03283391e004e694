// Package storage provides the data persistence layer for the shelfwise application.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shelfwise/shelfwise/internal/model"
	"github.com/shelfwise/shelfwise/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	cacheExpiry  time.Time
	db           *sql.DB
	mappingCache map[string]map[string]string
	dbPath       string
	cacheMutex   sync.RWMutex
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	// Validate input
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:           db,
		dbPath:       dbPath,
		mappingCache: make(map[string]map[string]string),
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// queryable abstracts over *sql.DB and *sql.Tx for shared query helpers.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// Transaction methods delegate to the main storage with the transaction.
func (t *sqliteTransaction) SaveReceipt(ctx context.Context, receipt *model.Receipt) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateReceipt(receipt); err != nil {
		return err
	}
	return t.storage.saveReceiptTx(ctx, t.tx, receipt)
}

func (t *sqliteTransaction) GetReceiptByID(ctx context.Context, id string) (*model.Receipt, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getReceiptByIDTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetReceiptByHash(ctx context.Context, hash string) (*model.Receipt, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(hash, "hash"); err != nil {
		return nil, err
	}
	return t.storage.getReceiptByHashTx(ctx, t.tx, hash)
}

func (t *sqliteTransaction) ListReceipts(ctx context.Context, limit int) ([]model.Receipt, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listReceiptsTx(ctx, t.tx, limit)
}

func (t *sqliteTransaction) SaveListItem(ctx context.Context, item *model.ListItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateListItem(item); err != nil {
		return err
	}
	return t.storage.saveListItemTx(ctx, t.tx, item)
}

func (t *sqliteTransaction) GetOpenListItems(ctx context.Context) ([]model.ListItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getOpenListItemsTx(ctx, t.tx)
}

func (t *sqliteTransaction) GetListItemByID(ctx context.Context, id string) (*model.ListItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getListItemByIDTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) MarkListItemChecked(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return t.storage.markListItemCheckedTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) SavePantryItem(ctx context.Context, item *model.PantryItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePantryItem(item); err != nil {
		return err
	}
	return t.storage.savePantryItemTx(ctx, t.tx, item)
}

func (t *sqliteTransaction) GetActivePantryItems(ctx context.Context, userID string) ([]model.PantryItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return t.storage.getActivePantryItemsTx(ctx, t.tx, userID)
}

func (t *sqliteTransaction) GetPantryItemByID(ctx context.Context, id string) (*model.PantryItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getPantryItemByIDTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) RecordPantryPurchase(ctx context.Context, id string, obs model.PriceObservation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return t.storage.recordPantryPurchaseTx(ctx, t.tx, id, obs)
}

func (t *sqliteTransaction) ApplyMergePlan(ctx context.Context, userID string, plan model.MergePlan) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.applyMergePlanTx(ctx, t.tx, userID, plan)
}

func (t *sqliteTransaction) GetMappings(ctx context.Context, userID string) (map[string]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return t.storage.getMappingsTx(ctx, t.tx, userID)
}

func (t *sqliteTransaction) ListMappings(ctx context.Context, userID string) ([]model.LearnedMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return t.storage.listMappingsTx(ctx, t.tx, userID)
}

func (t *sqliteTransaction) SaveMapping(ctx context.Context, mapping *model.LearnedMapping) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMapping(mapping); err != nil {
		return err
	}
	return t.storage.saveMappingTx(ctx, t.tx, mapping)
}

func (t *sqliteTransaction) DeleteMapping(ctx context.Context, userID, receiptName string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.deleteMappingTx(ctx, t.tx, userID, receiptName)
}

func (t *sqliteTransaction) TouchMapping(ctx context.Context, userID, receiptName string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.touchMappingTx(ctx, t.tx, userID, receiptName)
}

func (t *sqliteTransaction) SaveSuppression(ctx context.Context, userID, receiptName string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.saveSuppressionTx(ctx, t.tx, userID, receiptName)
}

func (t *sqliteTransaction) GetSuppressions(ctx context.Context, userID string) (map[string]bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getSuppressionsTx(ctx, t.tx, userID)
}

func (t *sqliteTransaction) SavePendingMatch(ctx context.Context, match *model.PendingMatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePendingMatch(match); err != nil {
		return err
	}
	return t.storage.savePendingMatchTx(ctx, t.tx, match)
}

func (t *sqliteTransaction) GetPendingMatch(ctx context.Context, id string) (*model.PendingMatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getPendingMatchTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetPendingMatchesForReceipt(ctx context.Context, receiptID string) ([]model.PendingMatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(receiptID, "receiptID"); err != nil {
		return nil, err
	}
	return t.storage.getPendingMatchesForReceiptTx(ctx, t.tx, receiptID)
}

func (t *sqliteTransaction) GetOpenPendingMatches(ctx context.Context) ([]model.PendingMatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getOpenPendingMatchesTx(ctx, t.tx)
}

func (t *sqliteTransaction) ResolvePendingMatch(ctx context.Context, id string, status model.PendingMatchStatus, resolution *model.ItemRef, resolvedAt time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return t.storage.resolvePendingMatchTx(ctx, t.tx, id, status, resolution, resolvedAt)
}

func (t *sqliteTransaction) SavePriceObservation(ctx context.Context, obs *model.PriceObservation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateObservation(obs); err != nil {
		return err
	}
	return t.storage.savePriceObservationTx(ctx, t.tx, obs)
}

func (t *sqliteTransaction) GetCurrentPrice(ctx context.Context, normalizedName, size, storeID string) (*model.CurrentPrice, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getCurrentPriceTx(ctx, t.tx, normalizedName, size, storeID)
}

func (t *sqliteTransaction) SaveCurrentPrice(ctx context.Context, price *model.CurrentPrice) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCurrentPrice(price); err != nil {
		return err
	}
	return t.storage.saveCurrentPriceTx(ctx, t.tx, price)
}

func (t *sqliteTransaction) GetCurrentPricesForItem(ctx context.Context, normalizedName string) ([]model.CurrentPrice, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(normalizedName, "normalizedName"); err != nil {
		return nil, err
	}
	return t.storage.getCurrentPricesForItemTx(ctx, t.tx, normalizedName)
}

func (t *sqliteTransaction) GetPriceObservations(ctx context.Context, normalizedName string, limit int) ([]model.PriceObservation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(normalizedName, "normalizedName"); err != nil {
		return nil, err
	}
	return t.storage.getPriceObservationsTx(ctx, t.tx, normalizedName, limit)
}

func (t *sqliteTransaction) ReassignPriceHistory(ctx context.Context, fromName, toName string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.reassignPriceHistoryTx(ctx, t.tx, fromName, toName)
}

func (t *sqliteTransaction) GetStores(ctx context.Context) ([]model.Store, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getStoresTx(ctx, t.tx)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	// Nested transactions not supported
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	// Transactions should be committed or rolled back, not closed
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}
