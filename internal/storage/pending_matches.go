package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shelfwise/shelfwise/internal/common"
	"github.com/shelfwise/shelfwise/internal/model"
)

// SavePendingMatch persists an unresolved receipt line with its candidate
// snapshot. The snapshot is immutable after this point.
func (s *SQLiteStorage) SavePendingMatch(ctx context.Context, match *model.PendingMatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePendingMatch(match); err != nil {
		return err
	}
	return s.savePendingMatchTx(ctx, s.db, match)
}

func (s *SQLiteStorage) savePendingMatchTx(ctx context.Context, q queryable, match *model.PendingMatch) error {
	if match.CreatedAt.IsZero() {
		match.CreatedAt = time.Now()
	}

	line, err := json.Marshal(match.Line)
	if err != nil {
		return fmt.Errorf("failed to marshal line: %w", err)
	}
	candidates, err := json.Marshal(match.Candidates)
	if err != nil {
		return fmt.Errorf("failed to marshal candidates: %w", err)
	}

	var resolutionKind, resolutionID any
	if match.Resolution != nil {
		resolutionKind = string(match.Resolution.Kind)
		resolutionID = match.Resolution.ID
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO pending_matches (id, receipt_id, position, status, line, candidates, resolution_kind, resolution_id, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, match.ID, match.ReceiptID, match.Position, string(match.Status), string(line),
		string(candidates), resolutionKind, resolutionID, match.CreatedAt, nullableTime(match.ResolvedAt))
	if err != nil {
		return fmt.Errorf("failed to save pending match: %w", err)
	}
	return nil
}

// GetPendingMatch retrieves one pending match by ID.
func (s *SQLiteStorage) GetPendingMatch(ctx context.Context, id string) (*model.PendingMatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getPendingMatchTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getPendingMatchTx(ctx context.Context, q queryable, id string) (*model.PendingMatch, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, receipt_id, position, status, line, candidates, resolution_kind, resolution_id, created_at, resolved_at
		FROM pending_matches
		WHERE id = ?
	`, id)

	match, err := scanPendingMatchRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: pending match %s", common.ErrNotFound, id)
	}
	return match, err
}

// GetPendingMatchesForReceipt returns a receipt's pending matches in the
// order they were generated. The ordering is stable so review progress
// indicators stay consistent.
func (s *SQLiteStorage) GetPendingMatchesForReceipt(ctx context.Context, receiptID string) ([]model.PendingMatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(receiptID, "receiptID"); err != nil {
		return nil, err
	}
	return s.getPendingMatchesForReceiptTx(ctx, s.db, receiptID)
}

func (s *SQLiteStorage) getPendingMatchesForReceiptTx(ctx context.Context, q queryable, receiptID string) ([]model.PendingMatch, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, receipt_id, position, status, line, candidates, resolution_kind, resolution_id, created_at, resolved_at
		FROM pending_matches
		WHERE receipt_id = ?
		ORDER BY position
	`, receiptID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending matches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectPendingMatches(rows)
}

// GetOpenPendingMatches returns every still-pending match across receipts,
// oldest receipt first.
func (s *SQLiteStorage) GetOpenPendingMatches(ctx context.Context) ([]model.PendingMatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getOpenPendingMatchesTx(ctx, s.db)
}

func (s *SQLiteStorage) getOpenPendingMatchesTx(ctx context.Context, q queryable) ([]model.PendingMatch, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, receipt_id, position, status, line, candidates, resolution_kind, resolution_id, created_at, resolved_at
		FROM pending_matches
		WHERE status = 'pending'
		ORDER BY created_at, position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get open pending matches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectPendingMatches(rows)
}

// ResolvePendingMatch transitions a pending match to a terminal state. Only
// still-pending rows are updated; resolving an already-terminal match
// affects nothing, which is how confirm stays idempotent.
func (s *SQLiteStorage) ResolvePendingMatch(ctx context.Context, id string, status model.PendingMatchStatus, resolution *model.ItemRef, resolvedAt time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.resolvePendingMatchTx(ctx, s.db, id, status, resolution, resolvedAt)
}

func (s *SQLiteStorage) resolvePendingMatchTx(ctx context.Context, q queryable, id string, status model.PendingMatchStatus, resolution *model.ItemRef, resolvedAt time.Time) error {
	if !status.IsTerminal() {
		return fmt.Errorf("%w: %s is not terminal", ErrInvalidStatus, status)
	}

	var resolutionKind, resolutionID any
	if resolution != nil {
		resolutionKind = string(resolution.Kind)
		resolutionID = resolution.ID
	}

	_, err := q.ExecContext(ctx, `
		UPDATE pending_matches
		SET status = ?, resolution_kind = ?, resolution_id = ?, resolved_at = ?
		WHERE id = ? AND status = 'pending'
	`, string(status), resolutionKind, resolutionID, resolvedAt, id)
	if err != nil {
		return fmt.Errorf("failed to resolve pending match: %w", err)
	}
	return nil
}

func collectPendingMatches(rows *sql.Rows) ([]model.PendingMatch, error) {
	var matches []model.PendingMatch
	for rows.Next() {
		match, err := scanPendingMatchRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		matches = append(matches, *match)
	}
	return matches, rows.Err()
}

func scanPendingMatchRow(scan func(...any) error) (*model.PendingMatch, error) {
	var match model.PendingMatch
	var status, line, candidates string
	var resolutionKind, resolutionID sql.NullString
	var resolvedAt sql.NullTime

	err := scan(&match.ID, &match.ReceiptID, &match.Position, &status, &line, &candidates,
		&resolutionKind, &resolutionID, &match.CreatedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}

	match.Status = model.PendingMatchStatus(status)
	if err := json.Unmarshal([]byte(line), &match.Line); err != nil {
		return nil, fmt.Errorf("failed to unmarshal line: %w", err)
	}
	if err := json.Unmarshal([]byte(candidates), &match.Candidates); err != nil {
		return nil, fmt.Errorf("failed to unmarshal candidates: %w", err)
	}
	if resolutionKind.Valid && resolutionID.Valid {
		match.Resolution = &model.ItemRef{
			Kind: model.ItemRefKind(resolutionKind.String),
			ID:   resolutionID.String,
		}
	}
	match.ResolvedAt = resolvedAt.Time
	return &match, nil
}
