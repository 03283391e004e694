// Package reconcile orchestrates receipt processing: store resolution,
// matching, auto-confirmation, and pending-match enqueueing.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/shelfwise/shelfwise/internal/common"
	"github.com/shelfwise/shelfwise/internal/matcher"
	"github.com/shelfwise/shelfwise/internal/model"
	"github.com/shelfwise/shelfwise/internal/pricing"
	"github.com/shelfwise/shelfwise/internal/service"
	"github.com/shelfwise/shelfwise/internal/stores"
	"github.com/shelfwise/shelfwise/internal/textmatch"
)

// Summary reports what happened to one ingested receipt.
type Summary struct {
	ReceiptID     string
	StoreID       string
	Lines         int
	AutoConfirmed int
	Enqueued      int
	Suppressed    int
}

// Reconciler runs receipts through the matching pipeline.
type Reconciler struct {
	storage    service.Storage
	matcher    *matcher.ItemMatcher
	aggregator *pricing.Aggregator
	userID     string
}

// New creates a reconciler for one user.
func New(storage service.Storage, m *matcher.ItemMatcher, aggregator *pricing.Aggregator, userID string) *Reconciler {
	return &Reconciler{
		storage:    storage,
		matcher:    m,
		aggregator: aggregator,
		userID:     userID,
	}
}

// Process ingests one receipt: resolves its store, matches every line
// against a point-in-time snapshot of the catalog, auto-applies clear
// winners, and enqueues the rest for review. The receipt and all of its
// line outcomes commit atomically.
func (r *Reconciler) Process(ctx context.Context, receipt *model.Receipt) (*Summary, error) {
	if receipt == nil || len(receipt.Lines) == 0 {
		return nil, common.ErrNoLines
	}

	if existing, err := r.storage.GetReceiptByHash(ctx, receipt.Hash); err == nil {
		return nil, fmt.Errorf("%w: already ingested as %s", common.ErrDuplicateReceipt, existing.ID)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	if err := r.resolveStore(ctx, receipt); err != nil {
		return nil, err
	}

	snapshot, err := r.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	// Bulk ingests from concurrent processes can hit SQLITE_BUSY; the whole
	// transaction rolls back, so replaying it is safe.
	var summary *Summary
	err = common.WithRetry(ctx, func() error {
		s, applyErr := r.apply(ctx, receipt, snapshot)
		if applyErr != nil {
			return &common.RetryableError{Err: applyErr, Retryable: isBusy(applyErr)}
		}
		summary = s
		return nil
	}, common.RetryOptions{MaxAttempts: 3, InitialDelay: 50 * time.Millisecond})
	if err != nil {
		return nil, err
	}

	slog.Info("receipt processed",
		"receipt_id", receipt.ID,
		"store_id", receipt.StoreID,
		"lines", summary.Lines,
		"auto_confirmed", summary.AutoConfirmed,
		"enqueued", summary.Enqueued)

	return summary, nil
}

// apply runs the matching pass for one receipt inside a single transaction.
func (r *Reconciler) apply(ctx context.Context, receipt *model.Receipt, snapshot *snapshot) (*Summary, error) {
	tx, err := r.storage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.SaveReceipt(ctx, receipt); err != nil {
		return nil, err
	}

	summary := &Summary{
		ReceiptID: receipt.ID,
		StoreID:   receipt.StoreID,
		Lines:     len(receipt.Lines),
	}

	position := 0
	for _, line := range receipt.Lines {
		matches := r.matcher.Match(line, snapshot.candidates)
		decision := r.matcher.Decide(matches)

		switch {
		case decision.AutoConfirm:
			if err := r.autoApply(ctx, tx, receipt, line, *decision.Best, snapshot); err != nil {
				return nil, err
			}
			summary.AutoConfirmed++

		case len(matches) == 0 && snapshot.suppressions[textmatch.Normalize(line.Name)]:
			// The user already said this name has no counterpart.
			summary.Suppressed++

		default:
			pending := &model.PendingMatch{
				ID:         uuid.New().String(),
				ReceiptID:  receipt.ID,
				Position:   position,
				Status:     model.MatchPending,
				Line:       line,
				Candidates: matches,
				CreatedAt:  time.Now(),
			}
			if err := tx.SavePendingMatch(ctx, pending); err != nil {
				return nil, err
			}
			position++
			summary.Enqueued++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit receipt: %w", err)
	}

	return summary, nil
}

// isBusy reports whether an error is a transient SQLite contention error.
func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}

// resolveStore maps the receipt's raw store text to a canonical store ID.
// An unrecognized store is not an error; the receipt just carries no ID and
// its confirmations produce no price observations.
func (r *Reconciler) resolveStore(ctx context.Context, receipt *model.Receipt) error {
	catalog, err := r.storage.GetStores(ctx)
	if err != nil {
		return err
	}
	normalizer := stores.NewNormalizer(catalog)
	if id, ok := normalizer.Resolve(receipt.StoreName); ok {
		receipt.StoreID = id
	} else {
		slog.Warn("unrecognized store on receipt",
			"store_name", receipt.StoreName,
			"receipt_id", receipt.ID)
	}
	return nil
}

// snapshot is the point-in-time catalog read a whole receipt is matched
// against. Lines within one receipt do not see each other's effects.
type snapshot struct {
	candidates   matcher.Candidates
	listItems    map[string]model.ListItem
	pantryItems  map[string]model.PantryItem
	suppressions map[string]bool
}

func (r *Reconciler) loadSnapshot(ctx context.Context) (*snapshot, error) {
	listItems, err := r.storage.GetOpenListItems(ctx)
	if err != nil {
		return nil, err
	}
	pantryItems, err := r.storage.GetActivePantryItems(ctx, r.userID)
	if err != nil {
		return nil, err
	}
	mappings, err := r.storage.GetMappings(ctx, r.userID)
	if err != nil {
		return nil, err
	}
	suppressions, err := r.storage.GetSuppressions(ctx, r.userID)
	if err != nil {
		return nil, err
	}

	snap := &snapshot{
		candidates: matcher.Candidates{
			ListItems:   listItems,
			PantryItems: pantryItems,
			Mappings:    mappings,
		},
		listItems:    make(map[string]model.ListItem, len(listItems)),
		pantryItems:  make(map[string]model.PantryItem, len(pantryItems)),
		suppressions: suppressions,
	}
	for _, item := range listItems {
		snap.listItems[item.ID] = item
	}
	for _, item := range pantryItems {
		snap.pantryItems[item.ID] = item
	}
	return snap, nil
}

// autoApply commits a clear winner without review: the target item is
// updated and a price observation recorded. No mapping is learned; only an
// explicit user confirmation teaches the matcher new names.
func (r *Reconciler) autoApply(ctx context.Context, tx service.Transaction, receipt *model.Receipt, line model.ReceiptLine, best model.CandidateMatch, snap *snapshot) error {
	if best.Target == nil {
		return fmt.Errorf("%w: auto-confirm without target", common.ErrValidation)
	}

	var canonicalName, size string
	switch best.Target.Kind {
	case model.RefListItem:
		item, ok := snap.listItems[best.Target.ID]
		if !ok {
			return fmt.Errorf("%w: list item %s", common.ErrNotFound, best.Target.ID)
		}
		if err := tx.MarkListItemChecked(ctx, item.ID); err != nil {
			return err
		}
		canonicalName, size = item.Name, item.Size

	case model.RefPantryItem:
		item, ok := snap.pantryItems[best.Target.ID]
		if !ok {
			return fmt.Errorf("%w: pantry item %s", common.ErrNotFound, best.Target.ID)
		}
		obs := model.PriceObservation{Price: linePrice(line), ObservedAt: receipt.PurchasedAt}
		if err := tx.RecordPantryPurchase(ctx, item.ID, obs); err != nil {
			return err
		}
		canonicalName = item.Name

	default:
		return fmt.Errorf("%w: unknown item kind %q", common.ErrValidation, best.Target.Kind)
	}
	if size == "" {
		size = "each"
	}

	if mappingApplied(best.Reasons) {
		if err := tx.TouchMapping(ctx, r.userID, textmatch.Normalize(line.Name)); err != nil {
			return err
		}
	}

	if price := linePrice(line); price.IsPositive() && receipt.StoreID != "" {
		recorder := pricing.NewRecorder(tx, r.aggregator)
		obs := model.PriceObservation{
			ID:             uuid.New().String(),
			NormalizedName: textmatch.Normalize(canonicalName),
			Size:           size,
			StoreID:        receipt.StoreID,
			ReporterID:     r.userID,
			Price:          price,
			ObservedAt:     receipt.PurchasedAt,
		}
		if _, err := recorder.Record(ctx, obs); err != nil {
			return err
		}
	}

	slog.Debug("line auto-confirmed",
		"line", line.Name,
		"target", best.Target.String(),
		"score", best.Score)
	return nil
}

func mappingApplied(reasons []model.MatchReason) bool {
	for _, reason := range reasons {
		if reason == model.ReasonLearnedMapping {
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
