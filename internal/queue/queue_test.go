package queue

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shelfwise/shelfwise/internal/common"
	"github.com/shelfwise/shelfwise/internal/model"
	"github.com/shelfwise/shelfwise/internal/pricing"
	"github.com/shelfwise/shelfwise/internal/storage"
)

const testUser = "user1"

func setupQueue(t *testing.T) (*Queue, *storage.SQLiteStorage) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	return New(store, pricing.NewAggregator(), testUser), store
}

func seedReceipt(t *testing.T, store *storage.SQLiteStorage, id string) *model.Receipt {
	t.Helper()
	receipt := &model.Receipt{
		ID:          id,
		StoreID:     "tesco",
		StoreName:   "TESCO EXPRESS",
		PurchasedAt: time.Date(2026, 8, 20, 14, 30, 0, 0, time.UTC),
		Lines: []model.ReceiptLine{
			{Name: "HNZ BKD BNS 415G", Quantity: 1, TotalPrice: decimal.NewFromFloat(1.40)},
		},
	}
	receipt.Hash = receipt.GenerateHash()
	if err := store.SaveReceipt(context.Background(), receipt); err != nil {
		t.Fatalf("Failed to save receipt: %v", err)
	}
	return receipt
}

func seedPendingMatch(t *testing.T, store *storage.SQLiteStorage, receiptID string, candidates []model.CandidateMatch) *model.PendingMatch {
	t.Helper()
	match := &model.PendingMatch{
		ID:        "pm-1",
		ReceiptID: receiptID,
		Status:    model.MatchPending,
		Line: model.ReceiptLine{
			Name:       "HNZ BKD BNS 415G",
			Quantity:   1,
			UnitPrice:  decimal.NewFromFloat(1.40),
			TotalPrice: decimal.NewFromFloat(1.40),
		},
		Candidates: candidates,
		CreatedAt:  time.Now(),
	}
	if err := store.SavePendingMatch(context.Background(), match); err != nil {
		t.Fatalf("Failed to save pending match: %v", err)
	}
	return match
}

func TestQueue_Confirm_ListItem(t *testing.T) {
	q, store := setupQueue(t)
	ctx := context.Background()

	seedReceipt(t, store, "rcpt-1")
	listItem := &model.ListItem{
		ID:   "li-1",
		Name: "Heinz Baked Beans",
		Size: "415g",
	}
	if err := store.SaveListItem(ctx, listItem); err != nil {
		t.Fatalf("Failed to save list item: %v", err)
	}

	target := model.ItemRef{Kind: model.RefListItem, ID: "li-1"}
	seedPendingMatch(t, store, "rcpt-1", []model.CandidateMatch{
		{Target: &target, TargetName: "Heinz Baked Beans", Score: 78},
	})

	resolved, err := q.Confirm(ctx, "pm-1", target)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if resolved.Status != model.MatchConfirmed {
		t.Errorf("Status = %q, want confirmed", resolved.Status)
	}
	if resolved.Resolution == nil || resolved.Resolution.ID != "li-1" {
		t.Errorf("Resolution = %+v, want li-1", resolved.Resolution)
	}

	// List item checked off.
	item, err := store.GetListItemByID(ctx, "li-1")
	if err != nil {
		t.Fatalf("Failed to get list item: %v", err)
	}
	if !item.Checked {
		t.Error("Expected list item to be checked")
	}

	// Mapping learned, normalized on both sides.
	mappings, err := store.GetMappings(ctx, testUser)
	if err != nil {
		t.Fatalf("Failed to get mappings: %v", err)
	}
	if mappings["hnz bkd bns"] != "heinz baked beans" {
		t.Errorf("mapping = %v, want hnz bkd bns -> heinz baked beans", mappings)
	}

	// Price aggregated under the canonical name.
	price, err := store.GetCurrentPrice(ctx, "heinz baked beans", "415g", "tesco")
	if err != nil {
		t.Fatalf("Failed to get current price: %v", err)
	}
	if !price.UnitPrice.Equal(decimal.NewFromFloat(1.40)) {
		t.Errorf("UnitPrice = %s, want 1.40", price.UnitPrice)
	}
	if price.ReportCount != 1 {
		t.Errorf("ReportCount = %d, want 1", price.ReportCount)
	}
}

func TestQueue_Confirm_PantryItem(t *testing.T) {
	q, store := setupQueue(t)
	ctx := context.Background()

	seedReceipt(t, store, "rcpt-1")
	pantryItem := &model.PantryItem{
		ID:     "pi-1",
		UserID: testUser,
		Name:   "Baked Beans",
		Stock:  model.StockOut,
		Status: model.ItemActive,
	}
	if err := store.SavePantryItem(ctx, pantryItem); err != nil {
		t.Fatalf("Failed to save pantry item: %v", err)
	}

	target := model.ItemRef{Kind: model.RefPantryItem, ID: "pi-1"}
	seedPendingMatch(t, store, "rcpt-1", []model.CandidateMatch{
		{Target: &target, TargetName: "Baked Beans", Score: 72},
	})

	if _, err := q.Confirm(ctx, "pm-1", target); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	item, err := store.GetPantryItemByID(ctx, "pi-1")
	if err != nil {
		t.Fatalf("Failed to get pantry item: %v", err)
	}
	if item.Stock != model.StockStocked {
		t.Errorf("Stock = %q, want stocked", item.Stock)
	}
	if item.PurchaseCount != 1 {
		t.Errorf("PurchaseCount = %d, want 1", item.PurchaseCount)
	}
	if !item.LastPrice.Equal(decimal.NewFromFloat(1.40)) {
		t.Errorf("LastPrice = %s, want 1.40", item.LastPrice)
	}
}

func TestQueue_Confirm_Idempotent(t *testing.T) {
	q, store := setupQueue(t)
	ctx := context.Background()

	seedReceipt(t, store, "rcpt-1")
	listItem := &model.ListItem{ID: "li-1", Name: "Heinz Baked Beans"}
	if err := store.SaveListItem(ctx, listItem); err != nil {
		t.Fatalf("Failed to save list item: %v", err)
	}

	target := model.ItemRef{Kind: model.RefListItem, ID: "li-1"}
	seedPendingMatch(t, store, "rcpt-1", []model.CandidateMatch{
		{Target: &target, TargetName: "Heinz Baked Beans", Score: 78},
	})

	if _, err := q.Confirm(ctx, "pm-1", target); err != nil {
		t.Fatalf("First confirm failed: %v", err)
	}

	// Second confirm is a no-op: no double observation, no error.
	resolved, err := q.Confirm(ctx, "pm-1", target)
	if err != nil {
		t.Fatalf("Second confirm failed: %v", err)
	}
	if resolved.Status != model.MatchConfirmed {
		t.Errorf("Status = %q, want confirmed", resolved.Status)
	}

	observations, err := store.GetPriceObservations(ctx, "heinz baked beans", 10)
	if err != nil {
		t.Fatalf("Failed to get observations: %v", err)
	}
	if len(observations) != 1 {
		t.Errorf("len(observations) = %d, want 1 after double confirm", len(observations))
	}
}

func TestQueue_Confirm_RejectsUnknownCandidate(t *testing.T) {
	q, store := setupQueue(t)
	ctx := context.Background()

	seedReceipt(t, store, "rcpt-1")
	target := model.ItemRef{Kind: model.RefListItem, ID: "li-1"}
	seedPendingMatch(t, store, "rcpt-1", []model.CandidateMatch{
		{Target: &target, TargetName: "Heinz Baked Beans", Score: 78},
	})

	_, err := q.Confirm(ctx, "pm-1", model.ItemRef{Kind: model.RefPantryItem, ID: "not-a-candidate"})
	if !errors.Is(err, common.ErrValidation) {
		t.Errorf("Confirm unknown candidate = %v, want ErrValidation", err)
	}

	// Match untouched.
	match, err := store.GetPendingMatch(ctx, "pm-1")
	if err != nil {
		t.Fatalf("Failed to get match: %v", err)
	}
	if match.Status != model.MatchPending {
		t.Errorf("Status = %q, want still pending", match.Status)
	}
}

func TestQueue_ConfirmNew(t *testing.T) {
	q, store := setupQueue(t)
	ctx := context.Background()

	seedReceipt(t, store, "rcpt-1")
	seedPendingMatch(t, store, "rcpt-1", nil)

	resolved, err := q.ConfirmNew(ctx, "pm-1", "Heinz Baked Beans", "Tinned")
	if err != nil {
		t.Fatalf("ConfirmNew failed: %v", err)
	}
	if resolved.Status != model.MatchConfirmed {
		t.Errorf("Status = %q, want confirmed", resolved.Status)
	}
	if resolved.Resolution == nil || resolved.Resolution.Kind != model.RefPantryItem {
		t.Fatalf("Resolution = %+v, want a pantry ref", resolved.Resolution)
	}

	item, err := store.GetPantryItemByID(ctx, resolved.Resolution.ID)
	if err != nil {
		t.Fatalf("Failed to get created item: %v", err)
	}
	if item.Name != "Heinz Baked Beans" {
		t.Errorf("Name = %q, want Heinz Baked Beans", item.Name)
	}
	if item.PurchaseCount != 1 {
		t.Errorf("PurchaseCount = %d, want 1", item.PurchaseCount)
	}
}

func TestQueue_NoMatch_Suppresses(t *testing.T) {
	q, store := setupQueue(t)
	ctx := context.Background()

	seedReceipt(t, store, "rcpt-1")
	seedPendingMatch(t, store, "rcpt-1", nil)

	resolved, err := q.NoMatch(ctx, "pm-1")
	if err != nil {
		t.Fatalf("NoMatch failed: %v", err)
	}
	if resolved.Status != model.MatchNoMatch {
		t.Errorf("Status = %q, want no_match", resolved.Status)
	}

	suppressions, err := store.GetSuppressions(ctx, testUser)
	if err != nil {
		t.Fatalf("Failed to get suppressions: %v", err)
	}
	if !suppressions["hnz bkd bns"] {
		t.Errorf("suppressions = %v, want hnz bkd bns present", suppressions)
	}
}

func TestQueue_SkipAll(t *testing.T) {
	q, store := setupQueue(t)
	ctx := context.Background()

	seedReceipt(t, store, "rcpt-1")
	for i, id := range []string{"pm-a", "pm-b", "pm-c"} {
		match := &model.PendingMatch{
			ID:        id,
			ReceiptID: "rcpt-1",
			Position:  i,
			Status:    model.MatchPending,
			Line:      model.ReceiptLine{Name: "Item", TotalPrice: decimal.NewFromFloat(1)},
			CreatedAt: time.Now(),
		}
		if err := store.SavePendingMatch(ctx, match); err != nil {
			t.Fatalf("Failed to save pending match: %v", err)
		}
	}
	if err := store.ResolvePendingMatch(ctx, "pm-a", model.MatchSkipped, nil, time.Now()); err != nil {
		t.Fatalf("Failed to pre-resolve: %v", err)
	}

	skipped, err := q.SkipAll(ctx, "rcpt-1")
	if err != nil {
		t.Fatalf("SkipAll failed: %v", err)
	}
	if skipped != 2 {
		t.Errorf("skipped = %d, want 2 (one was already resolved)", skipped)
	}

	open, err := q.Pending(ctx, "rcpt-1")
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("len(open) = %d, want 0", len(open))
	}
}
