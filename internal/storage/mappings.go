package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/shelfwise/shelfwise/internal/common"
	"github.com/shelfwise/shelfwise/internal/model"
)

const mappingCacheTTL = 5 * time.Minute

// GetMappings returns a user's learned receipt-name to canonical-name map.
func (s *SQLiteStorage) GetMappings(ctx context.Context, userID string) (map[string]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	// Check cache first
	if cached := s.getCachedMappings(userID); cached != nil {
		return cached, nil
	}

	mappings, err := s.getMappingsTx(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	s.cacheMappings(userID, mappings)
	return mappings, nil
}

func (s *SQLiteStorage) getMappingsTx(ctx context.Context, q queryable, userID string) (map[string]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT receipt_name, canonical_name
		FROM learned_mappings
		WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	mappings := make(map[string]string)
	for rows.Next() {
		var receiptName, canonicalName string
		if scanErr := rows.Scan(&receiptName, &canonicalName); scanErr != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", scanErr)
		}
		mappings[receiptName] = canonicalName
	}
	return mappings, rows.Err()
}

// ListMappings returns a user's learned mappings with usage details.
func (s *SQLiteStorage) ListMappings(ctx context.Context, userID string) ([]model.LearnedMapping, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return s.listMappingsTx(ctx, s.db, userID)
}

func (s *SQLiteStorage) listMappingsTx(ctx context.Context, q queryable, userID string) ([]model.LearnedMapping, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT user_id, receipt_name, canonical_name, use_count, created_at, COALESCE(last_used_at, created_at)
		FROM learned_mappings
		WHERE user_id = ?
		ORDER BY use_count DESC, receipt_name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var mappings []model.LearnedMapping
	for rows.Next() {
		var m model.LearnedMapping
		if scanErr := rows.Scan(&m.UserID, &m.ReceiptName, &m.CanonicalName, &m.UseCount, &m.CreatedAt, &m.LastUsedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", scanErr)
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// SaveMapping inserts or refreshes a learned mapping. Re-confirming an
// existing mapping bumps its use count.
func (s *SQLiteStorage) SaveMapping(ctx context.Context, mapping *model.LearnedMapping) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMapping(mapping); err != nil {
		return err
	}
	return s.saveMappingTx(ctx, s.db, mapping)
}

func (s *SQLiteStorage) saveMappingTx(ctx context.Context, q queryable, mapping *model.LearnedMapping) error {
	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = time.Now()
	}
	if mapping.LastUsedAt.IsZero() {
		mapping.LastUsedAt = mapping.CreatedAt
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO learned_mappings (user_id, receipt_name, canonical_name, use_count, created_at, last_used_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(user_id, receipt_name) DO UPDATE SET
			canonical_name = excluded.canonical_name,
			use_count = use_count + 1,
			last_used_at = excluded.last_used_at
	`, mapping.UserID, mapping.ReceiptName, mapping.CanonicalName, mapping.CreatedAt, mapping.LastUsedAt)
	if err != nil {
		return fmt.Errorf("failed to save mapping: %w", err)
	}

	s.invalidateMappingCache(mapping.UserID)
	return nil
}

// DeleteMapping removes a learned mapping.
func (s *SQLiteStorage) DeleteMapping(ctx context.Context, userID, receiptName string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if err := validateString(receiptName, "receiptName"); err != nil {
		return err
	}
	return s.deleteMappingTx(ctx, s.db, userID, receiptName)
}

func (s *SQLiteStorage) deleteMappingTx(ctx context.Context, q queryable, userID, receiptName string) error {
	result, err := q.ExecContext(ctx, `
		DELETE FROM learned_mappings WHERE user_id = ? AND receipt_name = ?
	`, userID, receiptName)
	if err != nil {
		return fmt.Errorf("failed to delete mapping: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: mapping %q", common.ErrNotFound, receiptName)
	}

	s.invalidateMappingCache(userID)
	return nil
}

// TouchMapping bumps a mapping's use count when the matcher applies it.
func (s *SQLiteStorage) TouchMapping(ctx context.Context, userID, receiptName string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.touchMappingTx(ctx, s.db, userID, receiptName)
}

func (s *SQLiteStorage) touchMappingTx(ctx context.Context, q queryable, userID, receiptName string) error {
	_, err := q.ExecContext(ctx, `
		UPDATE learned_mappings
		SET use_count = use_count + 1, last_used_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND receipt_name = ?
	`, userID, receiptName)
	if err != nil {
		return fmt.Errorf("failed to touch mapping: %w", err)
	}
	return nil
}

// SaveSuppression records a no-match verdict for a literal receipt name so
// it stops generating low-value suggestions.
func (s *SQLiteStorage) SaveSuppression(ctx context.Context, userID, receiptName string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if err := validateString(receiptName, "receiptName"); err != nil {
		return err
	}
	return s.saveSuppressionTx(ctx, s.db, userID, receiptName)
}

func (s *SQLiteStorage) saveSuppressionTx(ctx context.Context, q queryable, userID, receiptName string) error {
	_, err := q.ExecContext(ctx, `
		INSERT OR IGNORE INTO no_match_names (user_id, receipt_name) VALUES (?, ?)
	`, userID, receiptName)
	if err != nil {
		return fmt.Errorf("failed to save suppression: %w", err)
	}
	return nil
}

// GetSuppressions returns the set of receipt names a user marked no-match.
func (s *SQLiteStorage) GetSuppressions(ctx context.Context, userID string) (map[string]bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	return s.getSuppressionsTx(ctx, s.db, userID)
}

func (s *SQLiteStorage) getSuppressionsTx(ctx context.Context, q queryable, userID string) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT receipt_name FROM no_match_names WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get suppressions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if scanErr := rows.Scan(&name); scanErr != nil {
			return nil, fmt.Errorf("failed to scan suppression: %w", scanErr)
		}
		names[name] = true
	}
	return names, rows.Err()
}

func (s *SQLiteStorage) getCachedMappings(userID string) map[string]string {
	s.cacheMutex.RLock()
	defer s.cacheMutex.RUnlock()

	if time.Now().After(s.cacheExpiry) {
		return nil
	}
	cached, ok := s.mappingCache[userID]
	if !ok {
		return nil
	}

	out := make(map[string]string, len(cached))
	for k, v := range cached {
		out[k] = v
	}
	return out
}

func (s *SQLiteStorage) cacheMappings(userID string, mappings map[string]string) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	copied := make(map[string]string, len(mappings))
	for k, v := range mappings {
		copied[k] = v
	}
	s.mappingCache[userID] = copied
	s.cacheExpiry = time.Now().Add(mappingCacheTTL)
}

func (s *SQLiteStorage) invalidateMappingCache(userID string) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()
	delete(s.mappingCache, userID)
}
