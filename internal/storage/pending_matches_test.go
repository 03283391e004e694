package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shelfwise/shelfwise/internal/common"
	"github.com/shelfwise/shelfwise/internal/model"
)

func createTestPendingMatch(id, receiptID string, position int) *model.PendingMatch {
	return &model.PendingMatch{
		ID:        id,
		ReceiptID: receiptID,
		Position:  position,
		Status:    model.MatchPending,
		Line: model.ReceiptLine{
			Name:       "HNZ BKD BNS 415G",
			Quantity:   1,
			TotalPrice: decimal.NewFromFloat(1.40),
			Confidence: 0.91,
		},
		Candidates: []model.CandidateMatch{
			{
				Target:     &model.ItemRef{Kind: model.RefListItem, ID: "li-1"},
				TargetName: "Heinz Baked Beans",
				Score:      78,
				Reasons:    []model.MatchReason{model.ReasonTokenOverlap, model.ReasonPriceMatch},
			},
		},
		CreatedAt: time.Now(),
	}
}

func TestSQLiteStorage_PendingMatchRoundtrip(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	match := createTestPendingMatch("pm-1", "rcpt-1", 0)
	if err := store.SavePendingMatch(ctx, match); err != nil {
		t.Fatalf("Failed to save pending match: %v", err)
	}

	got, err := store.GetPendingMatch(ctx, "pm-1")
	if err != nil {
		t.Fatalf("Failed to get pending match: %v", err)
	}
	if got.Status != model.MatchPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}
	if got.Line.Name != "HNZ BKD BNS 415G" {
		t.Errorf("Line.Name = %q, want original", got.Line.Name)
	}
	if len(got.Candidates) != 1 {
		t.Fatalf("len(Candidates) = %d, want 1", len(got.Candidates))
	}
	if got.Candidates[0].Target == nil || got.Candidates[0].Target.ID != "li-1" {
		t.Errorf("Candidates[0].Target = %+v, want li-1", got.Candidates[0].Target)
	}
	if got.Candidates[0].Score != 78 {
		t.Errorf("Candidates[0].Score = %d, want 78", got.Candidates[0].Score)
	}
	if got.Resolution != nil {
		t.Errorf("Resolution = %+v, want nil", got.Resolution)
	}
}

func TestSQLiteStorage_PendingMatchesForReceipt_Order(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	// Insert out of position order.
	for _, pos := range []int{2, 0, 1} {
		match := createTestPendingMatch("pm-"+string(rune('a'+pos)), "rcpt-1", pos)
		if err := store.SavePendingMatch(ctx, match); err != nil {
			t.Fatalf("Failed to save pending match: %v", err)
		}
	}
	other := createTestPendingMatch("pm-other", "rcpt-2", 0)
	if err := store.SavePendingMatch(ctx, other); err != nil {
		t.Fatalf("Failed to save pending match: %v", err)
	}

	matches, err := store.GetPendingMatchesForReceipt(ctx, "rcpt-1")
	if err != nil {
		t.Fatalf("Failed to get pending matches: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("len(matches) = %d, want 3", len(matches))
	}
	for i, match := range matches {
		if match.Position != i {
			t.Errorf("matches[%d].Position = %d, want %d", i, match.Position, i)
		}
	}
}

func TestSQLiteStorage_ResolvePendingMatch(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	match := createTestPendingMatch("pm-1", "rcpt-1", 0)
	if err := store.SavePendingMatch(ctx, match); err != nil {
		t.Fatalf("Failed to save pending match: %v", err)
	}

	resolution := &model.ItemRef{Kind: model.RefListItem, ID: "li-1"}
	resolvedAt := time.Now()
	if err := store.ResolvePendingMatch(ctx, "pm-1", model.MatchConfirmed, resolution, resolvedAt); err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}

	got, err := store.GetPendingMatch(ctx, "pm-1")
	if err != nil {
		t.Fatalf("Failed to get pending match: %v", err)
	}
	if got.Status != model.MatchConfirmed {
		t.Errorf("Status = %q, want confirmed", got.Status)
	}
	if got.Resolution == nil || got.Resolution.ID != "li-1" {
		t.Errorf("Resolution = %+v, want li-1", got.Resolution)
	}

	// Resolving again is a no-op: terminal state sticks.
	if err := store.ResolvePendingMatch(ctx, "pm-1", model.MatchSkipped, nil, time.Now()); err != nil {
		t.Fatalf("Second resolve errored: %v", err)
	}
	got, err = store.GetPendingMatch(ctx, "pm-1")
	if err != nil {
		t.Fatalf("Failed to get pending match: %v", err)
	}
	if got.Status != model.MatchConfirmed {
		t.Errorf("Status after second resolve = %q, want confirmed unchanged", got.Status)
	}
}

func TestSQLiteStorage_ResolvePendingMatch_NonTerminal(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	match := createTestPendingMatch("pm-1", "rcpt-1", 0)
	if err := store.SavePendingMatch(ctx, match); err != nil {
		t.Fatalf("Failed to save pending match: %v", err)
	}

	err := store.ResolvePendingMatch(ctx, "pm-1", model.MatchPending, nil, time.Now())
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("ResolvePendingMatch(pending) = %v, want ErrInvalidStatus", err)
	}
}

func TestSQLiteStorage_GetOpenPendingMatches(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	open := createTestPendingMatch("pm-open", "rcpt-1", 0)
	resolved := createTestPendingMatch("pm-done", "rcpt-1", 1)
	for _, match := range []*model.PendingMatch{open, resolved} {
		if err := store.SavePendingMatch(ctx, match); err != nil {
			t.Fatalf("Failed to save pending match: %v", err)
		}
	}
	if err := store.ResolvePendingMatch(ctx, "pm-done", model.MatchNoMatch, nil, time.Now()); err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}

	matches, err := store.GetOpenPendingMatches(ctx)
	if err != nil {
		t.Fatalf("Failed to get open matches: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "pm-open" {
		t.Errorf("GetOpenPendingMatches = %+v, want only pm-open", matches)
	}
}

func TestSQLiteStorage_GetPendingMatch_NotFound(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	_, err := store.GetPendingMatch(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("GetPendingMatch = %v, want ErrNotFound", err)
	}
}
