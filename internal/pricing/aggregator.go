// Package pricing implements the price-intelligence core: folding confirmed
// price observations into per-store, per-size aggregates and computing
// best-value comparisons across them.
package pricing

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shelfwise/shelfwise/internal/common"
	"github.com/shelfwise/shelfwise/internal/model"
	"github.com/shopspring/decimal"
)

// Config holds the aggregation tuning knobs.
type Config struct {
	// HalfLife controls the recency weighting of the average: an
	// observation this old counts half as much as a fresh one.
	HalfLife time.Duration
	// ConfidenceSaturation is the report count at which confidence from
	// volume alone reaches its maximum.
	ConfidenceSaturation int
	// StaleAfter is the age past which confidence starts decaying.
	StaleAfter time.Duration
}

// DefaultConfig returns the default aggregation configuration.
func DefaultConfig() Config {
	return Config{
		HalfLife:             30 * 24 * time.Hour,
		ConfidenceSaturation: 5,
		StaleAfter:           45 * 24 * time.Hour,
	}
}

// Aggregator folds price observations into CurrentPrice aggregates. The fold
// is a pure function of (current aggregate, observation); persistence and
// write ordering belong to the caller.
type Aggregator struct {
	config Config
}

// NewAggregator creates an aggregator with the default configuration.
func NewAggregator() *Aggregator {
	return NewAggregatorWithConfig(DefaultConfig())
}

// NewAggregatorWithConfig creates an aggregator with a custom configuration.
func NewAggregatorWithConfig(config Config) *Aggregator {
	if config.HalfLife <= 0 {
		config.HalfLife = DefaultConfig().HalfLife
	}
	if config.ConfidenceSaturation <= 0 {
		config.ConfidenceSaturation = DefaultConfig().ConfidenceSaturation
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = DefaultConfig().StaleAfter
	}
	return &Aggregator{config: config}
}

// Observe folds one observation into the aggregate for its key. A nil
// current means this is the first report for the key. The observation is
// validated first; an invalid observation returns an error and leaves the
// existing aggregate untouched.
//
// Min, max, and report count commute across arrival order. The latest
// price and the recency-weighted average are order-sensitive on purpose:
// the observation with the newest timestamp wins.
func (a *Aggregator) Observe(current *model.CurrentPrice, obs model.PriceObservation) (model.CurrentPrice, error) {
	if err := validateObservation(obs); err != nil {
		return model.CurrentPrice{}, err
	}

	if current == nil || current.ReportCount == 0 {
		return model.CurrentPrice{
			NormalizedName: obs.NormalizedName,
			Size:           obs.Size,
			StoreID:        obs.StoreID,
			UnitPrice:      obs.Price,
			AveragePrice:   obs.Price,
			MinPrice:       obs.Price,
			MaxPrice:       obs.Price,
			ReportCount:    1,
			AvgWeight:      1,
			LastSeenAt:     obs.ObservedAt,
			Confidence:     a.confidence(1, obs.ObservedAt, obs.ObservedAt),
		}, nil
	}

	next := *current
	next.ReportCount++

	if obs.Price.LessThan(next.MinPrice) {
		next.MinPrice = obs.Price
	}
	if obs.Price.GreaterThan(next.MaxPrice) {
		next.MaxPrice = obs.Price
	}

	// Weighted-mean update. A newer observation decays the accumulated
	// weight; a late-arriving older observation is itself discounted, so
	// the newest report always carries the most weight.
	if obs.ObservedAt.After(next.LastSeenAt) {
		decayed := next.AvgWeight * a.decay(obs.ObservedAt.Sub(next.LastSeenAt))
		next.AveragePrice = weightedMean(next.AveragePrice, decayed, obs.Price, 1)
		next.AvgWeight = decayed + 1
		next.UnitPrice = obs.Price
		next.LastSeenAt = obs.ObservedAt
	} else {
		obsWeight := a.decay(next.LastSeenAt.Sub(obs.ObservedAt))
		next.AveragePrice = weightedMean(next.AveragePrice, next.AvgWeight, obs.Price, obsWeight)
		next.AvgWeight += obsWeight
	}

	next.Confidence = a.confidence(next.ReportCount, next.LastSeenAt, next.LastSeenAt)
	return next, nil
}

// ConfidenceAt re-evaluates an aggregate's confidence at a given time, so
// a stale price reads as less trustworthy than it did when last updated.
func (a *Aggregator) ConfidenceAt(current model.CurrentPrice, now time.Time) float64 {
	return a.confidence(current.ReportCount, current.LastSeenAt, now)
}

// confidence grows with report volume and decays once the last sighting is
// older than the staleness window.
func (a *Aggregator) confidence(reportCount int, lastSeen, now time.Time) float64 {
	volume := float64(reportCount) / float64(a.config.ConfidenceSaturation)
	if volume > 1 {
		volume = 1
	}

	freshness := 1.0
	if age := now.Sub(lastSeen); age > a.config.StaleAfter {
		overdue := age - a.config.StaleAfter
		freshness = math.Pow(0.5, float64(overdue)/float64(a.config.HalfLife))
	}

	return volume * freshness
}

// decay returns the exponential half-life factor for an age.
func (a *Aggregator) decay(age time.Duration) float64 {
	if age <= 0 {
		return 1
	}
	return math.Pow(0.5, float64(age)/float64(a.config.HalfLife))
}

func weightedMean(avg decimal.Decimal, avgWeight float64, price decimal.Decimal, priceWeight float64) decimal.Decimal {
	totalWeight := avgWeight + priceWeight
	if totalWeight <= 0 {
		return price
	}
	weighted := avg.Mul(decimal.NewFromFloat(avgWeight)).
		Add(price.Mul(decimal.NewFromFloat(priceWeight)))
	return weighted.Div(decimal.NewFromFloat(totalWeight)).Round(4)
}

func validateObservation(obs model.PriceObservation) error {
	if strings.TrimSpace(obs.NormalizedName) == "" {
		return fmt.Errorf("%w: %w", common.ErrValidation, common.ErrEmptyName)
	}
	if strings.TrimSpace(obs.Size) == "" {
		return fmt.Errorf("%w: observation for %q has no size", common.ErrValidation, obs.NormalizedName)
	}
	if strings.TrimSpace(obs.StoreID) == "" {
		return fmt.Errorf("%w: observation for %q has no store", common.ErrValidation, obs.NormalizedName)
	}
	if !obs.Price.IsPositive() {
		return fmt.Errorf("%w: %w (%s)", common.ErrValidation, common.ErrInvalidPrice, obs.Price)
	}
	if obs.ObservedAt.IsZero() {
		return fmt.Errorf("%w: observation for %q has no timestamp", common.ErrValidation, obs.NormalizedName)
	}
	return nil
}
