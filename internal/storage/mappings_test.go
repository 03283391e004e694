package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/shelfwise/shelfwise/internal/common"
	"github.com/shelfwise/shelfwise/internal/model"
)

func TestSQLiteStorage_Mappings(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	mapping := &model.LearnedMapping{
		UserID:        "user1",
		ReceiptName:   "hnz bkd bns",
		CanonicalName: "heinz baked beans",
	}
	if err := store.SaveMapping(ctx, mapping); err != nil {
		t.Fatalf("Failed to save mapping: %v", err)
	}

	mappings, err := store.GetMappings(ctx, "user1")
	if err != nil {
		t.Fatalf("Failed to get mappings: %v", err)
	}
	if mappings["hnz bkd bns"] != "heinz baked beans" {
		t.Errorf("mapping = %q, want heinz baked beans", mappings["hnz bkd bns"])
	}

	// Other users do not see it.
	other, err := store.GetMappings(ctx, "user2")
	if err != nil {
		t.Fatalf("Failed to get mappings for user2: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("user2 mappings = %v, want empty", other)
	}
}

func TestSQLiteStorage_SaveMapping_BumpsUseCount(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	mapping := &model.LearnedMapping{
		UserID:        "user1",
		ReceiptName:   "ss milk",
		CanonicalName: "semi skimmed milk",
	}
	for i := 0; i < 3; i++ {
		if err := store.SaveMapping(ctx, mapping); err != nil {
			t.Fatalf("Failed to save mapping: %v", err)
		}
	}

	list, err := store.ListMappings(ctx, "user1")
	if err != nil {
		t.Fatalf("Failed to list mappings: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, want 1", len(list))
	}
	if list[0].UseCount != 3 {
		t.Errorf("UseCount = %d, want 3", list[0].UseCount)
	}
}

func TestSQLiteStorage_SaveMapping_RetargetsCanonicalName(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.SaveMapping(ctx, &model.LearnedMapping{
		UserID: "user1", ReceiptName: "ww bread", CanonicalName: "white bread",
	}); err != nil {
		t.Fatalf("Failed to save mapping: %v", err)
	}
	if err := store.SaveMapping(ctx, &model.LearnedMapping{
		UserID: "user1", ReceiptName: "ww bread", CanonicalName: "wholewheat bread",
	}); err != nil {
		t.Fatalf("Failed to re-save mapping: %v", err)
	}

	mappings, err := store.GetMappings(ctx, "user1")
	if err != nil {
		t.Fatalf("Failed to get mappings: %v", err)
	}
	if mappings["ww bread"] != "wholewheat bread" {
		t.Errorf("mapping = %q, want latest canonical name", mappings["ww bread"])
	}
}

func TestSQLiteStorage_DeleteMapping(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.SaveMapping(ctx, &model.LearnedMapping{
		UserID: "user1", ReceiptName: "oj", CanonicalName: "orange juice",
	}); err != nil {
		t.Fatalf("Failed to save mapping: %v", err)
	}

	if err := store.DeleteMapping(ctx, "user1", "oj"); err != nil {
		t.Fatalf("Failed to delete mapping: %v", err)
	}

	mappings, err := store.GetMappings(ctx, "user1")
	if err != nil {
		t.Fatalf("Failed to get mappings: %v", err)
	}
	if len(mappings) != 0 {
		t.Errorf("mappings after delete = %v, want empty", mappings)
	}

	if err := store.DeleteMapping(ctx, "user1", "oj"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("DeleteMapping(missing) = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStorage_TouchMapping(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.SaveMapping(ctx, &model.LearnedMapping{
		UserID: "user1", ReceiptName: "oj", CanonicalName: "orange juice",
	}); err != nil {
		t.Fatalf("Failed to save mapping: %v", err)
	}
	if err := store.TouchMapping(ctx, "user1", "oj"); err != nil {
		t.Fatalf("Failed to touch mapping: %v", err)
	}

	list, err := store.ListMappings(ctx, "user1")
	if err != nil {
		t.Fatalf("Failed to list mappings: %v", err)
	}
	if list[0].UseCount != 2 {
		t.Errorf("UseCount = %d, want 2 after touch", list[0].UseCount)
	}
}

func TestSQLiteStorage_Suppressions(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.SaveSuppression(ctx, "user1", "bag charge"); err != nil {
		t.Fatalf("Failed to save suppression: %v", err)
	}
	// Saving twice is fine.
	if err := store.SaveSuppression(ctx, "user1", "bag charge"); err != nil {
		t.Fatalf("Failed to re-save suppression: %v", err)
	}

	names, err := store.GetSuppressions(ctx, "user1")
	if err != nil {
		t.Fatalf("Failed to get suppressions: %v", err)
	}
	if !names["bag charge"] {
		t.Error("Expected bag charge to be suppressed")
	}
	if len(names) != 1 {
		t.Errorf("len(suppressions) = %d, want 1", len(names))
	}
}

func TestSQLiteStorage_MappingCacheInvalidation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.SaveMapping(ctx, &model.LearnedMapping{
		UserID: "user1", ReceiptName: "oj", CanonicalName: "orange juice",
	}); err != nil {
		t.Fatalf("Failed to save mapping: %v", err)
	}

	// Prime the cache.
	if _, err := store.GetMappings(ctx, "user1"); err != nil {
		t.Fatalf("Failed to get mappings: %v", err)
	}

	// A write must invalidate, so the next read sees the new row.
	if err := store.SaveMapping(ctx, &model.LearnedMapping{
		UserID: "user1", ReceiptName: "ss milk", CanonicalName: "semi skimmed milk",
	}); err != nil {
		t.Fatalf("Failed to save mapping: %v", err)
	}

	mappings, err := store.GetMappings(ctx, "user1")
	if err != nil {
		t.Fatalf("Failed to get mappings: %v", err)
	}
	if len(mappings) != 2 {
		t.Errorf("len(mappings) = %d, want 2 after invalidation", len(mappings))
	}
}
