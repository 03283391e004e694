package matcher

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/shelfwise/internal/model"
)

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestMatch_AutoConfirmScenario(t *testing.T) {
	// A close name, matching category, and a 4.3% price delta should clear
	// the auto-confirm threshold with no competition.
	m := New()

	line := model.ReceiptLine{
		Name:      "Heinz Beans 400g",
		Quantity:  1,
		UnitPrice: price("1.10"),
		Category:  "Tinned",
	}

	candidates := Candidates{
		ListItems: []model.ListItem{
			{
				ID:             "li-1",
				Name:           "heinz beans",
				Category:       "Tinned",
				EstimatedPrice: price("1.15"),
				CreatedAt:      time.Now(),
			},
		},
	}

	matches := m.Match(line, candidates)
	require.Len(t, matches, 1)
	assert.GreaterOrEqual(t, matches[0].Score, 85)
	assert.Contains(t, matches[0].Reasons, model.MatchReason("token_overlap:1.00"))
	assert.Contains(t, matches[0].Reasons, model.ReasonCategoryMatch)

	decision := m.Decide(matches)
	assert.True(t, decision.AutoConfirm)
	require.NotNil(t, decision.Best)
	assert.Equal(t, "li-1", decision.Best.Target.ID)
}

func TestMatch_NoCandidatesClearFloor(t *testing.T) {
	m := New()

	line := model.ReceiptLine{
		Name:      "Random Unbranded Snack",
		UnitPrice: price("0.50"),
	}

	candidates := Candidates{
		ListItems: []model.ListItem{
			{ID: "li-1", Name: "dish soap", Category: "Household", EstimatedPrice: price("2.49")},
		},
		PantryItems: []model.PantryItem{
			{ID: "pi-1", Name: "orange juice", Category: "Drinks", Status: model.ItemActive},
		},
	}

	matches := m.Match(line, candidates)
	assert.Empty(t, matches)

	decision := m.Decide(matches)
	assert.False(t, decision.AutoConfirm)
	assert.Nil(t, decision.Best)
}

func TestMatch_LearnedMappingDominates(t *testing.T) {
	m := New()

	line := model.ReceiptLine{
		Name:      "HNZ BKD BNS",
		UnitPrice: price("1.10"),
	}

	candidates := Candidates{
		ListItems: []model.ListItem{
			{ID: "li-1", Name: "heinz beans", EstimatedPrice: price("1.15")},
			{ID: "li-2", Name: "kidney beans", EstimatedPrice: price("0.89")},
		},
		Mappings: map[string]string{
			"hnz bkd bns": "heinz beans",
		},
	}

	matches := m.Match(line, candidates)
	require.NotEmpty(t, matches)
	assert.Equal(t, "li-1", matches[0].Target.ID)
	assert.Contains(t, matches[0].Reasons, model.ReasonLearnedMapping)
}

func TestMatch_SkipsCheckedAndArchivedItems(t *testing.T) {
	m := New()

	line := model.ReceiptLine{Name: "whole milk", UnitPrice: price("1.20")}

	candidates := Candidates{
		ListItems: []model.ListItem{
			{ID: "li-1", Name: "whole milk", Checked: true},
		},
		PantryItems: []model.PantryItem{
			{ID: "pi-1", Name: "whole milk", Status: model.ItemArchived},
		},
	}

	assert.Empty(t, m.Match(line, candidates))
}

func TestMatch_SortedDescendingNoDuplicateTargets(t *testing.T) {
	m := New()

	line := model.ReceiptLine{Name: "greek yogurt 500g", UnitPrice: price("2.00"), Category: "Dairy"}

	candidates := Candidates{
		ListItems: []model.ListItem{
			{ID: "li-1", Name: "greek yogurt", Category: "Dairy", EstimatedPrice: price("2.10")},
			{ID: "li-2", Name: "yogurt", Category: "Dairy"},
		},
		PantryItems: []model.PantryItem{
			{ID: "pi-1", Name: "greek yogurt", Category: "Dairy", Status: model.ItemActive},
		},
	}

	matches := m.Match(line, candidates)
	require.NotEmpty(t, matches)

	seen := make(map[string]bool)
	for i, match := range matches {
		if i > 0 {
			assert.LessOrEqual(t, match.Score, matches[i-1].Score, "matches must be sorted descending")
		}
		require.NotNil(t, match.Target)
		key := match.Target.String()
		assert.False(t, seen[key], "duplicate target %s", key)
		seen[key] = true
	}
}

func TestMatch_TieBreakPrefersListItem(t *testing.T) {
	m := New()

	created := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	line := model.ReceiptLine{Name: "butter"}

	candidates := Candidates{
		ListItems: []model.ListItem{
			{ID: "li-1", Name: "butter", CreatedAt: created},
		},
		PantryItems: []model.PantryItem{
			{ID: "pi-1", Name: "butter", Status: model.ItemActive, CreatedAt: created},
		},
	}

	matches := m.Match(line, candidates)
	require.Len(t, matches, 2)
	assert.Equal(t, matches[0].Score, matches[1].Score)
	assert.Equal(t, model.RefListItem, matches[0].Target.Kind)
}

func TestMatch_TieBreakPrefersNewerCandidate(t *testing.T) {
	m := New()

	line := model.ReceiptLine{Name: "butter"}

	candidates := Candidates{
		ListItems: []model.ListItem{
			{ID: "li-old", Name: "butter", CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
			{ID: "li-new", Name: "butter", CreatedAt: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)},
		},
	}

	matches := m.Match(line, candidates)
	require.Len(t, matches, 2)
	assert.Equal(t, "li-new", matches[0].Target.ID)
}

func TestDecide_MarginRequired(t *testing.T) {
	m := New()

	matches := []model.CandidateMatch{
		{Target: &model.ItemRef{Kind: model.RefListItem, ID: "a"}, Score: 90},
		{Target: &model.ItemRef{Kind: model.RefListItem, ID: "b"}, Score: 88},
	}

	decision := m.Decide(matches)
	assert.False(t, decision.AutoConfirm, "close runner-up must force review")
	require.NotNil(t, decision.Best)
	assert.Equal(t, "a", decision.Best.Target.ID)
}

func TestMatch_EmptyLineName(t *testing.T) {
	m := New()

	matches := m.Match(model.ReceiptLine{Name: "   "}, Candidates{
		ListItems: []model.ListItem{{ID: "li-1", Name: "anything"}},
	})
	assert.Empty(t, matches)
}
