package stores

import (
	"testing"

	"github.com/shelfwise/shelfwise/internal/model"
	"github.com/stretchr/testify/assert"
)

func testStores() []model.Store {
	return []model.Store{
		{
			ID:          "tesco",
			DisplayName: "Tesco",
			Color:       "#00539F",
			MarketShare: 0.27,
			Aliases:     []string{"Tesco Express", "Tesco Extra", "Tesco Metro"},
		},
		{
			ID:          "sainsburys",
			DisplayName: "Sainsbury's",
			Color:       "#F06C00",
			MarketShare: 0.15,
			Aliases:     []string{"Sainsburys Local", "J Sainsbury"},
		},
		{
			ID:          "aldi",
			DisplayName: "Aldi",
			Color:       "#00005F",
			MarketShare: 0.10,
		},
	}
}

func TestNormalizer_Resolve(t *testing.T) {
	n := NewNormalizer(testStores())

	tests := []struct {
		name   string
		raw    string
		wantID string
		wantOK bool
	}{
		{
			name:   "exact display name",
			raw:    "Tesco",
			wantID: "tesco",
			wantOK: true,
		},
		{
			name:   "alias match case insensitive",
			raw:    "TESCO EXPRESS",
			wantID: "tesco",
			wantOK: true,
		},
		{
			name:   "alias with branch suffix",
			raw:    "TESCO EXPRESS HIGH STREET 0442",
			wantID: "tesco",
			wantOK: true,
		},
		{
			name:   "apostrophe stripped",
			raw:    "sainsbury's",
			wantID: "sainsburys",
			wantOK: true,
		},
		{
			name:   "unknown store",
			raw:    "Corner Shop Ltd",
			wantOK: false,
		},
		{
			name:   "empty input",
			raw:    "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := n.Resolve(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantID, id)
			}
		})
	}
}

func TestNormalizer_Get(t *testing.T) {
	n := NewNormalizer(testStores())

	store, ok := n.Get("aldi")
	assert.True(t, ok)
	assert.Equal(t, "Aldi", store.DisplayName)
	assert.Equal(t, "#00005F", store.Color)

	_, ok = n.Get("missing")
	assert.False(t, ok)
}

func TestNormalizer_AllOrderedByMarketShare(t *testing.T) {
	n := NewNormalizer(testStores())

	all := n.All()
	assert.Len(t, all, 3)
	assert.Equal(t, "tesco", all[0].ID)
	assert.Equal(t, "sainsburys", all[1].ID)
	assert.Equal(t, "aldi", all[2].ID)
}
