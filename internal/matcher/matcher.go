// Package matcher implements the candidate-matching core: scoring receipt
// lines against shopping-list and pantry items.
package matcher

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/shelfwise/shelfwise/internal/model"
	"github.com/shelfwise/shelfwise/internal/textmatch"
)

// Config holds the scoring weights and thresholds. The defaults were tuned
// against sample receipt corpora; treat them as a starting point, not truth.
type Config struct {
	ScoreFloor           int     // Candidates below this are discarded outright
	AutoConfirmThreshold int     // Minimum score for auto-apply
	AutoConfirmMargin    int     // Required lead over the runner-up
	LearnedMappingBonus  float64 // Flat bonus for a previously confirmed mapping
	TokenOverlapWeight   float64 // Multiplier on the token overlap ratio
	CategoryBonus        float64 // Flat bonus for category equality
	PriceBonus           float64 // Maximum bonus for price proximity
	PriceTolerance       float64 // Relative price delta considered "close"
	FuzzyThreshold       float64 // Minimum similarity before fuzzy points apply
	FuzzyWeight          float64 // Multiplier on the fuzzy similarity ratio
}

// DefaultConfig returns the default scoring configuration.
func DefaultConfig() Config {
	return Config{
		ScoreFloor:           30,
		AutoConfirmThreshold: 85,
		AutoConfirmMargin:    15,
		LearnedMappingBonus:  55,
		TokenOverlapWeight:   45,
		CategoryBonus:        10,
		PriceBonus:           15,
		PriceTolerance:       0.15,
		FuzzyThreshold:       0.72,
		FuzzyWeight:          25,
	}
}

// Candidates is the point-in-time snapshot an ItemMatcher scores against.
// Mappings are the user's learned receipt-name to canonical-name pairs,
// keyed and valued by normalized name.
type Candidates struct {
	ListItems   []model.ListItem
	PantryItems []model.PantryItem
	Mappings    map[string]string
}

// ItemMatcher scores receipt lines against a candidate snapshot. Matching is
// pure computation; the caller decides what to do with the result.
type ItemMatcher struct {
	config Config
}

// New creates a matcher with the default configuration.
func New() *ItemMatcher {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a matcher with custom weights and thresholds.
func NewWithConfig(config Config) *ItemMatcher {
	return &ItemMatcher{config: config}
}

// Match scores one receipt line against every open list item and active
// pantry item, returning candidates at or above the score floor, sorted by
// descending score. An empty result is a valid outcome, not an error.
func (m *ItemMatcher) Match(line model.ReceiptLine, candidates Candidates) []model.CandidateMatch {
	lineName := textmatch.Normalize(line.Name)
	if lineName == "" {
		return nil
	}

	mappedName := candidates.Mappings[lineName]

	var matches []model.CandidateMatch
	for i := range candidates.ListItems {
		item := &candidates.ListItems[i]
		if item.Checked {
			continue
		}
		ref := model.ItemRef{Kind: model.RefListItem, ID: item.ID}
		candidate := m.score(line, lineName, mappedName, scoreInput{
			ref:       ref,
			name:      item.Name,
			category:  item.Category,
			price:     item.EstimatedPrice,
			createdAt: item.CreatedAt.UnixNano(),
		})
		if candidate != nil {
			matches = append(matches, *candidate)
		}
	}

	for i := range candidates.PantryItems {
		item := &candidates.PantryItems[i]
		if item.Status != model.ItemActive {
			continue
		}
		ref := model.ItemRef{Kind: model.RefPantryItem, ID: item.ID}
		candidate := m.score(line, lineName, mappedName, scoreInput{
			ref:       ref,
			name:      item.Name,
			category:  item.Category,
			price:     item.LastPrice,
			createdAt: item.CreatedAt.UnixNano(),
		})
		if candidate != nil {
			matches = append(matches, *candidate)
		}
	}

	sortCandidates(matches)
	return matches
}

// Decision is the matcher's verdict on a scored line.
type Decision struct {
	Best        *model.CandidateMatch
	AutoConfirm bool
}

// Decide applies the auto-confirm policy to a sorted candidate list: the top
// candidate is auto-applied only when it clears the threshold with a clear
// margin over the runner-up.
func (m *ItemMatcher) Decide(matches []model.CandidateMatch) Decision {
	if len(matches) == 0 {
		return Decision{}
	}

	best := matches[0]
	if best.Score < m.config.AutoConfirmThreshold {
		return Decision{Best: &best}
	}
	if len(matches) > 1 && best.Score-matches[1].Score < m.config.AutoConfirmMargin {
		return Decision{Best: &best}
	}
	return Decision{Best: &best, AutoConfirm: true}
}

type scoreInput struct {
	ref       model.ItemRef
	name      string
	category  string
	price     decimal.Decimal
	createdAt int64
}

func (m *ItemMatcher) score(line model.ReceiptLine, lineName, mappedName string, input scoreInput) *model.CandidateMatch {
	candidateName := textmatch.Normalize(input.name)
	if candidateName == "" {
		return nil
	}

	total := 0.0
	var reasons []model.MatchReason

	// A previously confirmed receipt-name mapping is the dominant signal.
	if mappedName != "" && mappedName == candidateName {
		total += m.config.LearnedMappingBonus
		reasons = append(reasons, model.ReasonLearnedMapping)
	}

	if overlap := textmatch.TokenOverlap(line.Name, input.name); overlap > 0 {
		total += overlap * m.config.TokenOverlapWeight
		reasons = append(reasons, model.ReasonTokenOverlap.WithDetail(formatRatio(overlap)))
	}

	if line.Category != "" && textmatch.Normalize(line.Category) == textmatch.Normalize(input.category) {
		total += m.config.CategoryBonus
		reasons = append(reasons, model.ReasonCategoryMatch)
	}

	if delta, ok := priceDelta(line.UnitPrice, input.price); ok && delta <= m.config.PriceTolerance {
		closeness := 1 - delta/m.config.PriceTolerance
		total += closeness * m.config.PriceBonus
		reasons = append(reasons, model.ReasonPriceMatch.WithDetail(formatRatio(delta)))
	}

	if similarity := textmatch.Similarity(line.Name, input.name); similarity >= m.config.FuzzyThreshold {
		total += similarity * m.config.FuzzyWeight
		reasons = append(reasons, model.ReasonFuzzyName.WithDetail(formatRatio(similarity)))
	}

	score := int(math.Round(total))
	if score > 100 {
		score = 100
	}
	if score < m.config.ScoreFloor {
		return nil
	}

	ref := input.ref
	match := &model.CandidateMatch{
		Target:     &ref,
		TargetName: input.name,
		Score:      score,
		Reasons:    reasons,
	}
	if input.price.IsPositive() {
		match.TargetPrice = input.price.StringFixed(2)
	}
	match.SortCreatedAt = input.createdAt
	return match
}

// priceDelta computes |receipt - candidate| / candidate. The second return
// is false when the candidate has no usable price.
func priceDelta(receiptPrice, candidatePrice decimal.Decimal) (float64, bool) {
	if !candidatePrice.IsPositive() || !receiptPrice.IsPositive() {
		return 0, false
	}
	delta := receiptPrice.Sub(candidatePrice).Abs().Div(candidatePrice)
	return delta.InexactFloat64(), true
}

// sortCandidates orders by descending score; at equal score a list item beats
// a pantry item (planning intent outranks inventory update), then the most
// recently created candidate wins.
func sortCandidates(matches []model.CandidateMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		iList := matches[i].Target != nil && matches[i].Target.Kind == model.RefListItem
		jList := matches[j].Target != nil && matches[j].Target.Kind == model.RefListItem
		if iList != jList {
			return iList
		}
		return matches[i].SortCreatedAt > matches[j].SortCreatedAt
	})
}

func formatRatio(r float64) string {
	return fmt.Sprintf("%.2f", r)
}
