package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shelfwise/shelfwise/internal/common"
	"github.com/shelfwise/shelfwise/internal/model"
)

// SavePriceObservation appends a confirmed price sighting. Observations are
// never updated in place.
func (s *SQLiteStorage) SavePriceObservation(ctx context.Context, obs *model.PriceObservation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateObservation(obs); err != nil {
		return err
	}
	return s.savePriceObservationTx(ctx, s.db, obs)
}

func (s *SQLiteStorage) savePriceObservationTx(ctx context.Context, q queryable, obs *model.PriceObservation) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO price_observations (id, normalized_name, size, unit, store_id, reporter_id, price, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, obs.ID, obs.NormalizedName, obs.Size, nullableString(obs.Unit), obs.StoreID,
		nullableString(obs.ReporterID), decimalToDB(obs.Price), obs.ObservedAt)
	if err != nil {
		return fmt.Errorf("failed to save price observation: %w", err)
	}
	return nil
}

// GetCurrentPrice retrieves the running aggregate for one (item, size, store)
// key, or ErrNotFound when no observations exist for it yet.
func (s *SQLiteStorage) GetCurrentPrice(ctx context.Context, normalizedName, size, storeID string) (*model.CurrentPrice, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getCurrentPriceTx(ctx, s.db, normalizedName, size, storeID)
}

func (s *SQLiteStorage) getCurrentPriceTx(ctx context.Context, q queryable, normalizedName, size, storeID string) (*model.CurrentPrice, error) {
	row := q.QueryRowContext(ctx, `
		SELECT normalized_name, size, store_id, unit_price, average_price, min_price, max_price, report_count, confidence, avg_weight, last_seen_at
		FROM current_prices
		WHERE normalized_name = ? AND size = ? AND store_id = ?
	`, normalizedName, size, storeID)

	price, err := scanCurrentPriceRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: price for %s/%s at %s", common.ErrNotFound, normalizedName, size, storeID)
	}
	return price, err
}

// SaveCurrentPrice upserts the aggregate row for its key.
func (s *SQLiteStorage) SaveCurrentPrice(ctx context.Context, price *model.CurrentPrice) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCurrentPrice(price); err != nil {
		return err
	}
	return s.saveCurrentPriceTx(ctx, s.db, price)
}

func (s *SQLiteStorage) saveCurrentPriceTx(ctx context.Context, q queryable, price *model.CurrentPrice) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO current_prices (normalized_name, size, store_id, unit_price, average_price, min_price, max_price, report_count, confidence, avg_weight, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(normalized_name, size, store_id) DO UPDATE SET
			unit_price = excluded.unit_price,
			average_price = excluded.average_price,
			min_price = excluded.min_price,
			max_price = excluded.max_price,
			report_count = excluded.report_count,
			confidence = excluded.confidence,
			avg_weight = excluded.avg_weight,
			last_seen_at = excluded.last_seen_at
	`, price.NormalizedName, price.Size, price.StoreID,
		decimalToDB(price.UnitPrice), decimalToDB(price.AveragePrice),
		decimalToDB(price.MinPrice), decimalToDB(price.MaxPrice),
		price.ReportCount, price.Confidence, price.AvgWeight, price.LastSeenAt)
	if err != nil {
		return fmt.Errorf("failed to save current price: %w", err)
	}
	return nil
}

// GetCurrentPricesForItem returns every store/size aggregate for one item,
// cheapest store-id first for stable display.
func (s *SQLiteStorage) GetCurrentPricesForItem(ctx context.Context, normalizedName string) ([]model.CurrentPrice, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(normalizedName, "normalizedName"); err != nil {
		return nil, err
	}
	return s.getCurrentPricesForItemTx(ctx, s.db, normalizedName)
}

func (s *SQLiteStorage) getCurrentPricesForItemTx(ctx context.Context, q queryable, normalizedName string) ([]model.CurrentPrice, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT normalized_name, size, store_id, unit_price, average_price, min_price, max_price, report_count, confidence, avg_weight, last_seen_at
		FROM current_prices
		WHERE normalized_name = ?
		ORDER BY store_id, size
	`, normalizedName)
	if err != nil {
		return nil, fmt.Errorf("failed to get current prices: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var prices []model.CurrentPrice
	for rows.Next() {
		price, err := scanCurrentPriceRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		prices = append(prices, *price)
	}
	return prices, rows.Err()
}

// GetPriceObservations returns an item's raw sightings, newest first.
func (s *SQLiteStorage) GetPriceObservations(ctx context.Context, normalizedName string, limit int) ([]model.PriceObservation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(normalizedName, "normalizedName"); err != nil {
		return nil, err
	}
	return s.getPriceObservationsTx(ctx, s.db, normalizedName, limit)
}

func (s *SQLiteStorage) getPriceObservationsTx(ctx context.Context, q queryable, normalizedName string, limit int) ([]model.PriceObservation, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, normalized_name, size, unit, store_id, reporter_id, price, observed_at
		FROM price_observations
		WHERE normalized_name = ?
		ORDER BY observed_at DESC
		LIMIT ?
	`, normalizedName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get price observations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var observations []model.PriceObservation
	for rows.Next() {
		var obs model.PriceObservation
		var unit, reporterID, price sql.NullString
		if err := rows.Scan(&obs.ID, &obs.NormalizedName, &obs.Size, &unit, &obs.StoreID,
			&reporterID, &price, &obs.ObservedAt); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		obs.Unit = unit.String
		obs.ReporterID = reporterID.String
		obs.Price = decimalFromDB(price)
		observations = append(observations, obs)
	}
	return observations, rows.Err()
}

// ReassignPriceHistory re-keys observations and aggregates from one
// normalized name to another. Used during merges so the keeper inherits the
// archived duplicate's history. Aggregate rows that would collide with an
// existing keeper row are dropped rather than merged; the raw observations
// still move, so the aggregate rebuilds from the full history.
func (s *SQLiteStorage) ReassignPriceHistory(ctx context.Context, fromName, toName string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.reassignPriceHistoryTx(ctx, s.db, fromName, toName)
}

func (s *SQLiteStorage) reassignPriceHistoryTx(ctx context.Context, q queryable, fromName, toName string) error {
	if err := validateString(fromName, "fromName"); err != nil {
		return err
	}
	if err := validateString(toName, "toName"); err != nil {
		return err
	}
	if fromName == toName {
		return nil
	}

	_, err := q.ExecContext(ctx,
		`UPDATE price_observations SET normalized_name = ? WHERE normalized_name = ?`,
		toName, fromName)
	if err != nil {
		return fmt.Errorf("failed to reassign observations: %w", err)
	}

	_, err = q.ExecContext(ctx,
		`UPDATE OR IGNORE current_prices SET normalized_name = ? WHERE normalized_name = ?`,
		toName, fromName)
	if err != nil {
		return fmt.Errorf("failed to reassign aggregates: %w", err)
	}

	_, err = q.ExecContext(ctx,
		`DELETE FROM current_prices WHERE normalized_name = ?`, fromName)
	if err != nil {
		return fmt.Errorf("failed to drop superseded aggregates: %w", err)
	}
	return nil
}

func scanCurrentPriceRow(scan func(...any) error) (*model.CurrentPrice, error) {
	var price model.CurrentPrice
	var unitPrice, averagePrice, minPrice, maxPrice sql.NullString

	err := scan(&price.NormalizedName, &price.Size, &price.StoreID,
		&unitPrice, &averagePrice, &minPrice, &maxPrice,
		&price.ReportCount, &price.Confidence, &price.AvgWeight, &price.LastSeenAt)
	if err != nil {
		return nil, err
	}

	price.UnitPrice = decimalFromDB(unitPrice)
	price.AveragePrice = decimalFromDB(averagePrice)
	price.MinPrice = decimalFromDB(minPrice)
	price.MaxPrice = decimalFromDB(maxPrice)
	return &price, nil
}
