package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shelfwise/shelfwise/internal/common"
	"github.com/shelfwise/shelfwise/internal/model"
	"github.com/shelfwise/shelfwise/internal/textmatch"
)

// SaveListItem inserts or updates a shopping list item.
func (s *SQLiteStorage) SaveListItem(ctx context.Context, item *model.ListItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateListItem(item); err != nil {
		return err
	}
	return s.saveListItemTx(ctx, s.db, item)
}

func (s *SQLiteStorage) saveListItemTx(ctx context.Context, q queryable, item *model.ListItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	if item.ListID == "" {
		item.ListID = "default"
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO list_items (id, list_id, name, category, size, unit, brand, priority, checked, estimated_price, price_source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			size = excluded.size,
			unit = excluded.unit,
			brand = excluded.brand,
			priority = excluded.priority,
			checked = excluded.checked,
			estimated_price = excluded.estimated_price,
			price_source = excluded.price_source
	`, item.ID, item.ListID, item.Name, item.Category, item.Size, item.Unit, item.Brand,
		item.Priority, item.Checked, decimalToDB(item.EstimatedPrice), string(item.PriceSource), item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save list item: %w", err)
	}
	return nil
}

// GetOpenListItems returns all unchecked list items across lists.
func (s *SQLiteStorage) GetOpenListItems(ctx context.Context) ([]model.ListItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getOpenListItemsTx(ctx, s.db)
}

func (s *SQLiteStorage) getOpenListItemsTx(ctx context.Context, q queryable) ([]model.ListItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, list_id, name, category, size, unit, brand, priority, checked, estimated_price, price_source, created_at
		FROM list_items
		WHERE checked = 0
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get open list items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.ListItem
	for rows.Next() {
		item, scanErr := scanListItem(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// GetListItemByID retrieves one list item.
func (s *SQLiteStorage) GetListItemByID(ctx context.Context, id string) (*model.ListItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getListItemByIDTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getListItemByIDTx(ctx context.Context, q queryable, id string) (*model.ListItem, error) {
	var item model.ListItem
	var estimatedPrice, priceSource sql.NullString

	err := q.QueryRowContext(ctx, `
		SELECT id, list_id, name, category, size, unit, brand, priority, checked, estimated_price, price_source, created_at
		FROM list_items
		WHERE id = ?
	`, id).Scan(&item.ID, &item.ListID, &item.Name, &item.Category, &item.Size, &item.Unit,
		&item.Brand, &item.Priority, &item.Checked, &estimatedPrice, &priceSource, &item.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: list item %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get list item: %w", err)
	}

	item.EstimatedPrice = decimalFromDB(estimatedPrice)
	item.PriceSource = model.PriceSource(priceSource.String)
	return &item, nil
}

// MarkListItemChecked marks a list item as checked off.
func (s *SQLiteStorage) MarkListItemChecked(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.markListItemCheckedTx(ctx, s.db, id)
}

func (s *SQLiteStorage) markListItemCheckedTx(ctx context.Context, q queryable, id string) error {
	result, err := q.ExecContext(ctx, `UPDATE list_items SET checked = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark list item checked: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: list item %s", common.ErrNotFound, id)
	}
	return nil
}

// SavePantryItem inserts or updates a pantry item.
func (s *SQLiteStorage) SavePantryItem(ctx context.Context, item *model.PantryItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePantryItem(item); err != nil {
		return err
	}
	return s.savePantryItemTx(ctx, s.db, item)
}

func (s *SQLiteStorage) savePantryItemTx(ctx context.Context, q queryable, item *model.PantryItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO pantry_items (id, user_id, name, category, stock, status, price_source, last_price, purchase_count, pinned, created_at, last_purchased_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			stock = excluded.stock,
			status = excluded.status,
			price_source = excluded.price_source,
			last_price = excluded.last_price,
			purchase_count = excluded.purchase_count,
			pinned = excluded.pinned,
			last_purchased_at = excluded.last_purchased_at
	`, item.ID, item.UserID, item.Name, item.Category, string(item.Stock), string(item.Status),
		string(item.PriceSource), decimalToDB(item.LastPrice), item.PurchaseCount, item.Pinned,
		item.CreatedAt, nullableTime(item.LastPurchasedAt))
	if err != nil {
		return fmt.Errorf("failed to save pantry item: %w", err)
	}
	return nil
}

// GetActivePantryItems returns a user's active pantry items.
func (s *SQLiteStorage) GetActivePantryItems(ctx context.Context, userID string) ([]model.PantryItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return s.getActivePantryItemsTx(ctx, s.db, userID)
}

func (s *SQLiteStorage) getActivePantryItemsTx(ctx context.Context, q queryable, userID string) ([]model.PantryItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, name, category, stock, status, price_source, last_price, purchase_count, pinned, created_at, last_purchased_at
		FROM pantry_items
		WHERE user_id = ? AND status = 'active'
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pantry items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.PantryItem
	for rows.Next() {
		item, scanErr := scanPantryItem(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// GetPantryItemByID retrieves one pantry item regardless of status.
func (s *SQLiteStorage) GetPantryItemByID(ctx context.Context, id string) (*model.PantryItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getPantryItemByIDTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getPantryItemByIDTx(ctx context.Context, q queryable, id string) (*model.PantryItem, error) {
	var item model.PantryItem
	var lastPrice, priceSource sql.NullString
	var lastPurchased sql.NullTime

	err := q.QueryRowContext(ctx, `
		SELECT id, user_id, name, category, stock, status, price_source, last_price, purchase_count, pinned, created_at, last_purchased_at
		FROM pantry_items
		WHERE id = ?
	`, id).Scan(&item.ID, &item.UserID, &item.Name, &item.Category, &item.Stock, &item.Status,
		&priceSource, &lastPrice, &item.PurchaseCount, &item.Pinned, &item.CreatedAt, &lastPurchased)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: pantry item %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pantry item: %w", err)
	}

	item.LastPrice = decimalFromDB(lastPrice)
	item.PriceSource = model.PriceSource(priceSource.String)
	item.LastPurchasedAt = lastPurchased.Time
	return &item, nil
}

// RecordPantryPurchase updates a pantry item's purchase bookkeeping from a
// confirmed price observation: stock back to full, purchase count up, last
// price and provenance refreshed.
func (s *SQLiteStorage) RecordPantryPurchase(ctx context.Context, id string, obs model.PriceObservation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.recordPantryPurchaseTx(ctx, s.db, id, obs)
}

func (s *SQLiteStorage) recordPantryPurchaseTx(ctx context.Context, q queryable, id string, obs model.PriceObservation) error {
	result, err := q.ExecContext(ctx, `
		UPDATE pantry_items
		SET stock = 'stocked',
			purchase_count = purchase_count + 1,
			last_price = ?,
			price_source = ?,
			last_purchased_at = ?
		WHERE id = ?
	`, decimalToDB(obs.Price), string(model.PriceSourceReceipt), obs.ObservedAt, id)
	if err != nil {
		return fmt.Errorf("failed to record purchase: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: pantry item %s", common.ErrNotFound, id)
	}
	return nil
}

// ApplyMergePlan executes a dedup merge plan atomically: archives the losing
// items, copies an upgraded price onto the keeper if the plan names one, and
// re-keys archived items' price history onto the keeper's normalized name so
// receipt-sourced observations are never dropped.
func (s *SQLiteStorage) ApplyMergePlan(ctx context.Context, userID string, plan model.MergePlan) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if plan.KeepID == "" || len(plan.ArchiveIDs) == 0 {
		return fmt.Errorf("%w: merge plan", ErrNilParameter)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.applyMergePlanTx(ctx, tx, userID, plan); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) applyMergePlanTx(ctx context.Context, q queryable, userID string, plan model.MergePlan) error {
	keeper, err := s.getPantryItemByIDTx(ctx, q, plan.KeepID)
	if err != nil {
		return err
	}
	if keeper.UserID != userID {
		return fmt.Errorf("%w: pantry item %s", common.ErrNotFound, plan.KeepID)
	}
	keeperName := textmatch.Normalize(keeper.Name)

	if plan.UpgradedPrice && plan.PriceFromID != "" {
		source, sourceErr := s.getPantryItemByIDTx(ctx, q, plan.PriceFromID)
		if sourceErr != nil {
			return sourceErr
		}
		if _, execErr := q.ExecContext(ctx, `
			UPDATE pantry_items SET last_price = ?, price_source = ? WHERE id = ?
		`, decimalToDB(source.LastPrice), string(source.PriceSource), plan.KeepID); execErr != nil {
			return fmt.Errorf("failed to upgrade keeper price: %w", execErr)
		}
	}

	mergedCount := 0
	for _, archiveID := range plan.ArchiveIDs {
		archived, archErr := s.getPantryItemByIDTx(ctx, q, archiveID)
		if archErr != nil {
			return archErr
		}
		if archived.UserID != userID {
			return fmt.Errorf("%w: pantry item %s", common.ErrNotFound, archiveID)
		}

		// Price history follows the keeper.
		if archivedName := textmatch.Normalize(archived.Name); archivedName != keeperName {
			if reErr := s.reassignPriceHistoryTx(ctx, q, archivedName, keeperName); reErr != nil {
				return reErr
			}
		}

		mergedCount += archived.PurchaseCount
		if _, execErr := q.ExecContext(ctx, `
			UPDATE pantry_items SET status = 'archived' WHERE id = ?
		`, archiveID); execErr != nil {
			return fmt.Errorf("failed to archive pantry item: %w", execErr)
		}
	}

	if mergedCount > 0 {
		if _, execErr := q.ExecContext(ctx, `
			UPDATE pantry_items SET purchase_count = purchase_count + ? WHERE id = ?
		`, mergedCount, plan.KeepID); execErr != nil {
			return fmt.Errorf("failed to merge purchase counts: %w", execErr)
		}
	}

	return nil
}

func scanListItem(rows *sql.Rows) (*model.ListItem, error) {
	var item model.ListItem
	var estimatedPrice, priceSource sql.NullString

	err := rows.Scan(&item.ID, &item.ListID, &item.Name, &item.Category, &item.Size, &item.Unit,
		&item.Brand, &item.Priority, &item.Checked, &estimatedPrice, &priceSource, &item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan list item: %w", err)
	}

	item.EstimatedPrice = decimalFromDB(estimatedPrice)
	item.PriceSource = model.PriceSource(priceSource.String)
	return &item, nil
}

func scanPantryItem(rows *sql.Rows) (*model.PantryItem, error) {
	var item model.PantryItem
	var lastPrice, priceSource sql.NullString
	var lastPurchased sql.NullTime

	err := rows.Scan(&item.ID, &item.UserID, &item.Name, &item.Category, &item.Stock, &item.Status,
		&priceSource, &lastPrice, &item.PurchaseCount, &item.Pinned, &item.CreatedAt, &lastPurchased)
	if err != nil {
		return nil, fmt.Errorf("failed to scan pantry item: %w", err)
	}

	item.LastPrice = decimalFromDB(lastPrice)
	item.PriceSource = model.PriceSource(priceSource.String)
	item.LastPurchasedAt = lastPurchased.Time
	return &item, nil
}

func decimalToDB(d decimal.Decimal) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func decimalFromDB(s sql.NullString) decimal.Decimal {
	if !s.Valid || s.String == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
