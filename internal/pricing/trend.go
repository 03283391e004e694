package pricing

import (
	"github.com/shelfwise/shelfwise/internal/model"
)

// stableBand is the relative change below which a price counts as stable.
const stableBand = 0.01

// Trend summarizes price movement across a window of observations. The slice
// is expected newest-first, as storage returns it; the trend compares the
// newest observation against the oldest in the window. Fewer than two
// observations yield a stable trend with no change.
func Trend(observations []model.PriceObservation) model.PriceTrend {
	trend := model.PriceTrend{Direction: "stable"}
	if len(observations) < 2 {
		return trend
	}

	newest := observations[0]
	oldest := observations[len(observations)-1]
	if !oldest.Price.IsPositive() {
		return trend
	}

	change := newest.Price.Sub(oldest.Price)
	percent, _ := change.Div(oldest.Price).Float64()

	trend.ChangeAmount = change
	trend.ChangePercent = percent * 100
	trend.PeriodDays = int(newest.ObservedAt.Sub(oldest.ObservedAt).Hours() / 24)

	switch {
	case percent > stableBand:
		trend.Direction = "up"
	case percent < -stableBand:
		trend.Direction = "down"
	}

	return trend
}

// TrendArrow renders a direction as a display glyph.
func TrendArrow(direction string) string {
	switch direction {
	case "up":
		return "↑"
	case "down":
		return "↓"
	default:
		return "→"
	}
}
