// Package stores maps free-text store names from receipts to canonical
// store identities.
package stores

import (
	"sort"
	"strings"

	"github.com/shelfwise/shelfwise/internal/model"
	"github.com/shelfwise/shelfwise/internal/textmatch"
)

// minStoreOverlap is the token overlap a fuzzy store match must clear.
// Store headers are short, so anything below half overlap is noise.
const minStoreOverlap = 0.5

// Normalizer resolves raw store text to a canonical store.
type Normalizer struct {
	byID    map[string]model.Store
	byAlias map[string]string
	stores  []model.Store
}

// NewNormalizer builds a normalizer over the given canonical stores.
func NewNormalizer(canonical []model.Store) *Normalizer {
	n := &Normalizer{
		byID:    make(map[string]model.Store, len(canonical)),
		byAlias: make(map[string]string),
		stores:  make([]model.Store, len(canonical)),
	}
	copy(n.stores, canonical)

	// Higher market share wins ambiguous fuzzy matches; sort once so
	// iteration order is deterministic.
	sort.SliceStable(n.stores, func(i, j int) bool {
		return n.stores[i].MarketShare > n.stores[j].MarketShare
	})

	for _, store := range n.stores {
		n.byID[store.ID] = store
		n.byAlias[textmatch.Normalize(store.DisplayName)] = store.ID
		for _, alias := range store.Aliases {
			n.byAlias[textmatch.Normalize(alias)] = store.ID
		}
	}

	return n
}

// Resolve maps raw receipt header text to a canonical store ID. The second
// return is false when no store matches; callers keep the raw text in that
// case rather than guessing.
func (n *Normalizer) Resolve(raw string) (string, bool) {
	normalized := textmatch.Normalize(raw)
	if normalized == "" {
		return "", false
	}

	if id, ok := n.byAlias[normalized]; ok {
		return id, true
	}

	// Receipt headers often append branch names ("TESCO EXPRESS HIGH ST"),
	// so fall back to token overlap against known aliases.
	bestID := ""
	bestOverlap := 0.0
	for _, store := range n.stores {
		overlap := n.aliasOverlap(store, normalized)
		if overlap > bestOverlap {
			bestOverlap = overlap
			bestID = store.ID
		}
	}

	if bestOverlap < minStoreOverlap {
		return "", false
	}
	return bestID, true
}

func (n *Normalizer) aliasOverlap(store model.Store, normalized string) float64 {
	best := tokenContainment(textmatch.Normalize(store.DisplayName), normalized)
	for _, alias := range store.Aliases {
		if overlap := tokenContainment(textmatch.Normalize(alias), normalized); overlap > best {
			best = overlap
		}
	}
	return best
}

// Get returns the canonical store for an ID.
func (n *Normalizer) Get(id string) (model.Store, bool) {
	store, ok := n.byID[id]
	return store, ok
}

// All returns the canonical stores ordered by market share.
func (n *Normalizer) All() []model.Store {
	out := make([]model.Store, len(n.stores))
	copy(out, n.stores)
	return out
}

// tokenContainment measures how much of the alias appears in the raw text.
// Unlike symmetric overlap, extra branch tokens in the raw text do not
// penalize the match.
func tokenContainment(alias, raw string) float64 {
	aliasTokens := strings.Fields(alias)
	if len(aliasTokens) == 0 {
		return 0
	}

	rawSet := make(map[string]bool)
	for _, t := range strings.Fields(raw) {
		rawSet[t] = true
	}

	found := 0
	for _, t := range aliasTokens {
		if rawSet[t] {
			found++
		}
	}
	return float64(found) / float64(len(aliasTokens))
}
