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

func createTestObservation(id, name, storeID string, price float64, observedAt time.Time) *model.PriceObservation {
	return &model.PriceObservation{
		ID:             id,
		NormalizedName: name,
		Size:           "415g",
		StoreID:        storeID,
		Price:          decimal.NewFromFloat(price),
		ObservedAt:     observedAt,
	}
}

func TestSQLiteStorage_PriceObservations(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	observations := []*model.PriceObservation{
		createTestObservation("obs-1", "heinz baked beans", "tesco", 1.40, base),
		createTestObservation("obs-2", "heinz baked beans", "aldi", 1.19, base.Add(24*time.Hour)),
		createTestObservation("obs-3", "heinz baked beans", "tesco", 1.45, base.Add(48*time.Hour)),
		createTestObservation("obs-4", "milk", "tesco", 1.35, base),
	}
	for _, obs := range observations {
		if err := store.SavePriceObservation(ctx, obs); err != nil {
			t.Fatalf("Failed to save observation %s: %v", obs.ID, err)
		}
	}

	got, err := store.GetPriceObservations(ctx, "heinz baked beans", 10)
	if err != nil {
		t.Fatalf("Failed to get observations: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len(observations) = %d, want 3", len(got))
	}
	// Newest first.
	if got[0].ID != "obs-3" {
		t.Errorf("got[0].ID = %q, want obs-3", got[0].ID)
	}
	if !got[0].Price.Equal(decimal.NewFromFloat(1.45)) {
		t.Errorf("got[0].Price = %s, want 1.45", got[0].Price)
	}

	limited, err := store.GetPriceObservations(ctx, "heinz baked beans", 2)
	if err != nil {
		t.Fatalf("Failed to get limited observations: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("len(limited) = %d, want 2", len(limited))
	}
}

func TestSQLiteStorage_CurrentPriceRoundtrip(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	price := &model.CurrentPrice{
		NormalizedName: "heinz baked beans",
		Size:           "415g",
		StoreID:        "tesco",
		UnitPrice:      decimal.NewFromFloat(1.45),
		AveragePrice:   decimal.NewFromFloat(1.42),
		MinPrice:       decimal.NewFromFloat(1.40),
		MaxPrice:       decimal.NewFromFloat(1.45),
		ReportCount:    2,
		Confidence:     0.4,
		AvgWeight:      1.9,
		LastSeenAt:     time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC),
	}
	if err := store.SaveCurrentPrice(ctx, price); err != nil {
		t.Fatalf("Failed to save current price: %v", err)
	}

	got, err := store.GetCurrentPrice(ctx, "heinz baked beans", "415g", "tesco")
	if err != nil {
		t.Fatalf("Failed to get current price: %v", err)
	}
	if !got.AveragePrice.Equal(price.AveragePrice) {
		t.Errorf("AveragePrice = %s, want %s", got.AveragePrice, price.AveragePrice)
	}
	if got.ReportCount != 2 {
		t.Errorf("ReportCount = %d, want 2", got.ReportCount)
	}
	if got.AvgWeight != 1.9 {
		t.Errorf("AvgWeight = %v, want 1.9", got.AvgWeight)
	}

	// Upsert replaces the row for the same key.
	price.UnitPrice = decimal.NewFromFloat(1.50)
	price.MaxPrice = decimal.NewFromFloat(1.50)
	price.ReportCount = 3
	if err := store.SaveCurrentPrice(ctx, price); err != nil {
		t.Fatalf("Failed to upsert current price: %v", err)
	}
	got, err = store.GetCurrentPrice(ctx, "heinz baked beans", "415g", "tesco")
	if err != nil {
		t.Fatalf("Failed to get current price: %v", err)
	}
	if got.ReportCount != 3 {
		t.Errorf("ReportCount after upsert = %d, want 3", got.ReportCount)
	}
	if !got.UnitPrice.Equal(decimal.NewFromFloat(1.50)) {
		t.Errorf("UnitPrice after upsert = %s, want 1.50", got.UnitPrice)
	}
}

func TestSQLiteStorage_GetCurrentPrice_NotFound(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	_, err := store.GetCurrentPrice(context.Background(), "nothing", "1kg", "tesco")
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("GetCurrentPrice = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStorage_SaveCurrentPrice_InvalidBounds(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	price := &model.CurrentPrice{
		NormalizedName: "milk",
		Size:           "2pt",
		StoreID:        "tesco",
		UnitPrice:      decimal.NewFromFloat(1.35),
		AveragePrice:   decimal.NewFromFloat(1.35),
		MinPrice:       decimal.NewFromFloat(1.50), // min above avg
		MaxPrice:       decimal.NewFromFloat(1.35),
		ReportCount:    1,
		LastSeenAt:     time.Now(),
	}
	err := store.SaveCurrentPrice(context.Background(), price)
	if !errors.Is(err, ErrInvalidAggregate) {
		t.Errorf("SaveCurrentPrice = %v, want ErrInvalidAggregate", err)
	}
}

func TestSQLiteStorage_GetCurrentPricesForItem(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	seen := time.Now()
	for _, entry := range []struct {
		store string
		size  string
		price float64
	}{
		{"tesco", "415g", 1.40},
		{"aldi", "415g", 1.19},
		{"tesco", "200g", 0.95},
	} {
		price := &model.CurrentPrice{
			NormalizedName: "heinz baked beans",
			Size:           entry.size,
			StoreID:        entry.store,
			UnitPrice:      decimal.NewFromFloat(entry.price),
			AveragePrice:   decimal.NewFromFloat(entry.price),
			MinPrice:       decimal.NewFromFloat(entry.price),
			MaxPrice:       decimal.NewFromFloat(entry.price),
			ReportCount:    1,
			AvgWeight:      1,
			LastSeenAt:     seen,
		}
		if err := store.SaveCurrentPrice(ctx, price); err != nil {
			t.Fatalf("Failed to save current price: %v", err)
		}
	}

	prices, err := store.GetCurrentPricesForItem(ctx, "heinz baked beans")
	if err != nil {
		t.Fatalf("Failed to get prices: %v", err)
	}
	if len(prices) != 3 {
		t.Fatalf("len(prices) = %d, want 3", len(prices))
	}
}

func TestSQLiteStorage_ReassignPriceHistory(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if err := store.SavePriceObservation(ctx, createTestObservation("obs-1", "milk semi skimmed", "tesco", 1.35, base)); err != nil {
		t.Fatalf("Failed to save observation: %v", err)
	}
	if err := store.SavePriceObservation(ctx, createTestObservation("obs-2", "milk", "tesco", 1.30, base)); err != nil {
		t.Fatalf("Failed to save observation: %v", err)
	}

	if err := store.ReassignPriceHistory(ctx, "milk semi skimmed", "milk"); err != nil {
		t.Fatalf("Failed to reassign: %v", err)
	}

	got, err := store.GetPriceObservations(ctx, "milk", 10)
	if err != nil {
		t.Fatalf("Failed to get observations: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len(observations) = %d, want 2 after reassign", len(got))
	}

	orphaned, err := store.GetPriceObservations(ctx, "milk semi skimmed", 10)
	if err != nil {
		t.Fatalf("Failed to get observations: %v", err)
	}
	if len(orphaned) != 0 {
		t.Errorf("old name still has %d observations, want 0", len(orphaned))
	}
}
