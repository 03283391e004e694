// Package queue manages the review lifecycle of pending receipt-line matches.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shelfwise/shelfwise/internal/common"
	"github.com/shelfwise/shelfwise/internal/model"
	"github.com/shelfwise/shelfwise/internal/pricing"
	"github.com/shelfwise/shelfwise/internal/service"
	"github.com/shelfwise/shelfwise/internal/textmatch"
)

// Queue resolves pending matches. Each transition commits atomically: the
// status change and its side effects (learned mapping, price observation,
// item update) either all apply or none do.
type Queue struct {
	storage    service.Storage
	aggregator *pricing.Aggregator
	userID     string
}

// New creates a queue for one user's pending matches.
func New(storage service.Storage, aggregator *pricing.Aggregator, userID string) *Queue {
	return &Queue{
		storage:    storage,
		aggregator: aggregator,
		userID:     userID,
	}
}

// Confirm resolves a pending match against one of its snapshot candidates.
// On success it learns the receipt-name mapping, applies a price
// observation, and updates the target item. Confirming an already-resolved
// match returns the existing record unchanged.
func (q *Queue) Confirm(ctx context.Context, matchID string, target model.ItemRef) (*model.PendingMatch, error) {
	match, err := q.storage.GetPendingMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status.IsTerminal() {
		slog.Debug("pending match already resolved",
			"match_id", matchID,
			"status", match.Status)
		return match, nil
	}

	if !candidateInSnapshot(match.Candidates, target) {
		return nil, fmt.Errorf("%w: %s is not a candidate for this match", common.ErrValidation, target)
	}

	return q.confirm(ctx, match, target)
}

// ConfirmNew resolves a pending match by creating a fresh pantry item for
// the line, the "this is a new item" review choice.
func (q *Queue) ConfirmNew(ctx context.Context, matchID, name, category string) (*model.PendingMatch, error) {
	match, err := q.storage.GetPendingMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status.IsTerminal() {
		return match, nil
	}
	if name == "" {
		name = match.Line.Name
	}

	item := &model.PantryItem{
		ID:          uuid.New().String(),
		UserID:      q.userID,
		Name:        name,
		Category:    category,
		Stock:       model.StockStocked,
		Status:      model.ItemActive,
		PriceSource: model.PriceSourceReceipt,
		CreatedAt:   time.Now(),
	}
	if err := q.storage.SavePantryItem(ctx, item); err != nil {
		return nil, err
	}

	return q.confirm(ctx, match, model.ItemRef{Kind: model.RefPantryItem, ID: item.ID})
}

func (q *Queue) confirm(ctx context.Context, match *model.PendingMatch, target model.ItemRef) (*model.PendingMatch, error) {
	receipt, err := q.storage.GetReceiptByID(ctx, match.ReceiptID)
	if err != nil {
		return nil, err
	}

	tx, err := q.storage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	canonicalName, size, err := q.applyTarget(ctx, tx, target, receipt, match.Line)
	if err != nil {
		return nil, err
	}

	mapping := &model.LearnedMapping{
		UserID:        q.userID,
		ReceiptName:   textmatch.Normalize(match.Line.Name),
		CanonicalName: textmatch.Normalize(canonicalName),
	}
	if err := tx.SaveMapping(ctx, mapping); err != nil {
		return nil, err
	}

	if price := linePrice(match.Line); price.IsPositive() && receipt.StoreID != "" {
		recorder := pricing.NewRecorder(tx, q.aggregator)
		obs := model.PriceObservation{
			ID:             uuid.New().String(),
			NormalizedName: textmatch.Normalize(canonicalName),
			Size:           size,
			StoreID:        receipt.StoreID,
			ReporterID:     q.userID,
			Price:          price,
			ObservedAt:     receipt.PurchasedAt,
		}
		if _, err := recorder.Record(ctx, obs); err != nil {
			return nil, err
		}
	} else {
		slog.Debug("confirmed without price observation",
			"match_id", match.ID,
			"store_id", receipt.StoreID)
	}

	resolvedAt := time.Now()
	if err := tx.ResolvePendingMatch(ctx, match.ID, model.MatchConfirmed, &target, resolvedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit confirmation: %w", err)
	}

	slog.Info("pending match confirmed",
		"match_id", match.ID,
		"target", target.String(),
		"line", match.Line.Name)

	return q.storage.GetPendingMatch(ctx, match.ID)
}

// applyTarget performs the target item's side of a confirmation and returns
// its canonical name and size for the observation key.
func (q *Queue) applyTarget(ctx context.Context, tx service.Transaction, target model.ItemRef, receipt *model.Receipt, line model.ReceiptLine) (string, string, error) {
	switch target.Kind {
	case model.RefListItem:
		item, err := tx.GetListItemByID(ctx, target.ID)
		if err != nil {
			return "", "", err
		}
		if err := tx.MarkListItemChecked(ctx, target.ID); err != nil {
			return "", "", err
		}
		size := item.Size
		if size == "" {
			size = "each"
		}
		return item.Name, size, nil

	case model.RefPantryItem:
		item, err := tx.GetPantryItemByID(ctx, target.ID)
		if err != nil {
			return "", "", err
		}
		obs := model.PriceObservation{
			Price:      linePrice(line),
			ObservedAt: receipt.PurchasedAt,
		}
		if err := tx.RecordPantryPurchase(ctx, target.ID, obs); err != nil {
			return "", "", err
		}
		return item.Name, "each", nil

	default:
		return "", "", fmt.Errorf("%w: unknown item kind %q", common.ErrValidation, target.Kind)
	}
}

// Skip marks a pending match skipped. No mapping is learned and no price is
// recorded. Already-resolved matches are returned unchanged.
func (q *Queue) Skip(ctx context.Context, matchID string) (*model.PendingMatch, error) {
	return q.resolveSimple(ctx, matchID, model.MatchSkipped, false)
}

// NoMatch marks a pending match as having no catalog counterpart and
// suppresses future suggestions for the literal receipt name.
func (q *Queue) NoMatch(ctx context.Context, matchID string) (*model.PendingMatch, error) {
	return q.resolveSimple(ctx, matchID, model.MatchNoMatch, true)
}

func (q *Queue) resolveSimple(ctx context.Context, matchID string, status model.PendingMatchStatus, suppress bool) (*model.PendingMatch, error) {
	match, err := q.storage.GetPendingMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status.IsTerminal() {
		return match, nil
	}

	tx, err := q.storage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.ResolvePendingMatch(ctx, matchID, status, nil, time.Now()); err != nil {
		return nil, err
	}
	if suppress {
		if err := tx.SaveSuppression(ctx, q.userID, textmatch.Normalize(match.Line.Name)); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit resolution: %w", err)
	}

	return q.storage.GetPendingMatch(ctx, matchID)
}

// SkipAll skips every still-pending match for a receipt and returns how many
// were transitioned. Used when the user abandons review partway through.
func (q *Queue) SkipAll(ctx context.Context, receiptID string) (int, error) {
	matches, err := q.storage.GetPendingMatchesForReceipt(ctx, receiptID)
	if err != nil {
		return 0, err
	}

	tx, err := q.storage.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	skipped := 0
	now := time.Now()
	for _, match := range matches {
		if match.Status != model.MatchPending {
			continue
		}
		if err := tx.ResolvePendingMatch(ctx, match.ID, model.MatchSkipped, nil, now); err != nil {
			return 0, err
		}
		skipped++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit skip-all: %w", err)
	}

	if skipped > 0 {
		slog.Info("skipped remaining matches",
			"receipt_id", receiptID,
			"count", skipped)
	}
	return skipped, nil
}

// Pending returns a receipt's unresolved matches in review order.
func (q *Queue) Pending(ctx context.Context, receiptID string) ([]model.PendingMatch, error) {
	matches, err := q.storage.GetPendingMatchesForReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	open := matches[:0:0]
	for _, match := range matches {
		if match.Status == model.MatchPending {
			open = append(open, match)
		}
	}
	return open, nil
}

func candidateInSnapshot(candidates []model.CandidateMatch, target model.ItemRef) bool {
	for _, candidate := range candidates {
		if candidate.Target != nil && *candidate.Target == target {
			return true
		}
	}
	return false
}

func linePrice(line model.ReceiptLine) decimal.Decimal {
	if line.UnitPrice.IsPositive() {
		return line.UnitPrice
	}
	if line.Quantity > 1 && line.TotalPrice.IsPositive() {
		return line.TotalPrice.DivRound(decimal.NewFromFloat(line.Quantity), 4)
	}
	return line.TotalPrice
}
