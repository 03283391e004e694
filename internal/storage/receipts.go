package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shelfwise/shelfwise/internal/common"
	"github.com/shelfwise/shelfwise/internal/model"
)

// SaveReceipt persists a receipt with its line items.
func (s *SQLiteStorage) SaveReceipt(ctx context.Context, receipt *model.Receipt) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateReceipt(receipt); err != nil {
		return err
	}
	return s.saveReceiptTx(ctx, s.db, receipt)
}

func (s *SQLiteStorage) saveReceiptTx(ctx context.Context, q queryable, receipt *model.Receipt) error {
	lines, err := json.Marshal(receipt.Lines)
	if err != nil {
		return fmt.Errorf("failed to marshal receipt lines: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO receipts (id, hash, store_id, store_name, purchased_at, ingested_at, lines)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, receipt.ID, receipt.Hash, nullableString(receipt.StoreID), receipt.StoreName,
		receipt.PurchasedAt, receipt.IngestedAt, string(lines))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: receipt %s", common.ErrDuplicateReceipt, receipt.ID)
		}
		return fmt.Errorf("failed to save receipt: %w", err)
	}
	return nil
}

// GetReceiptByID retrieves a receipt by its ID.
func (s *SQLiteStorage) GetReceiptByID(ctx context.Context, id string) (*model.Receipt, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getReceiptByIDTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getReceiptByIDTx(ctx context.Context, q queryable, id string) (*model.Receipt, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, hash, store_id, store_name, purchased_at, ingested_at, lines
		FROM receipts
		WHERE id = ?
	`, id)
	return scanReceipt(row)
}

// GetReceiptByHash retrieves a receipt by its content hash, used for
// duplicate-ingest detection.
func (s *SQLiteStorage) GetReceiptByHash(ctx context.Context, hash string) (*model.Receipt, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(hash, "hash"); err != nil {
		return nil, err
	}
	return s.getReceiptByHashTx(ctx, s.db, hash)
}

func (s *SQLiteStorage) getReceiptByHashTx(ctx context.Context, q queryable, hash string) (*model.Receipt, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, hash, store_id, store_name, purchased_at, ingested_at, lines
		FROM receipts
		WHERE hash = ?
	`, hash)
	return scanReceipt(row)
}

// ListReceipts returns receipts in reverse purchase order.
func (s *SQLiteStorage) ListReceipts(ctx context.Context, limit int) ([]model.Receipt, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listReceiptsTx(ctx, s.db, limit)
}

func (s *SQLiteStorage) listReceiptsTx(ctx context.Context, q queryable, limit int) ([]model.Receipt, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, hash, store_id, store_name, purchased_at, ingested_at, lines
		FROM receipts
		ORDER BY purchased_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var receipts []model.Receipt
	for rows.Next() {
		receipt, scanErr := scanReceiptRows(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		receipts = append(receipts, *receipt)
	}
	return receipts, rows.Err()
}

func scanReceipt(row *sql.Row) (*model.Receipt, error) {
	var receipt model.Receipt
	var storeID sql.NullString
	var lines string

	err := row.Scan(&receipt.ID, &receipt.Hash, &storeID, &receipt.StoreName,
		&receipt.PurchasedAt, &receipt.IngestedAt, &lines)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: receipt", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}

	receipt.StoreID = storeID.String
	if err := json.Unmarshal([]byte(lines), &receipt.Lines); err != nil {
		return nil, fmt.Errorf("failed to unmarshal receipt lines: %w", err)
	}
	return &receipt, nil
}

func scanReceiptRows(rows *sql.Rows) (*model.Receipt, error) {
	var receipt model.Receipt
	var storeID sql.NullString
	var lines string

	err := rows.Scan(&receipt.ID, &receipt.Hash, &storeID, &receipt.StoreName,
		&receipt.PurchasedAt, &receipt.IngestedAt, &lines)
	if err != nil {
		return nil, fmt.Errorf("failed to scan receipt: %w", err)
	}

	receipt.StoreID = storeID.String
	if err := json.Unmarshal([]byte(lines), &receipt.Lines); err != nil {
		return nil, fmt.Errorf("failed to unmarshal receipt lines: %w", err)
	}
	return &receipt, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
