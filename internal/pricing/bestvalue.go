package pricing

import (
	"github.com/shelfwise/shelfwise/internal/model"
)

// Comparison is the best-value analysis for one canonical item.
type Comparison struct {
	// CheapestPerSize holds the lowest-priced cell in each size column.
	CheapestPerSize map[string]model.PriceCell
	// Best is the cell with the lowest price per parsed unit quantity, or
	// nil when no cell has a parseable size.
	Best *model.BestValue
}

// Analyze computes the cheapest store per size column and the global best
// price per unit across a price matrix. Cells arrive in store iteration
// order; ties keep the first cell seen. Cells whose size has no parseable
// leading quantity still compete per-size but are excluded from the
// price-per-unit ranking. An empty matrix yields an empty comparison.
func Analyze(cells []model.PriceCell) Comparison {
	result := Comparison{
		CheapestPerSize: make(map[string]model.PriceCell),
	}

	for _, cell := range cells {
		if !cell.Price.IsPositive() {
			continue
		}

		if existing, ok := result.CheapestPerSize[cell.Size]; !ok || cell.Price.LessThan(existing.Price) {
			result.CheapestPerSize[cell.Size] = cell
		}

		quantity, ok := ParseSizeQuantity(cell.Size)
		if !ok {
			continue
		}
		perUnit := cell.Price.Div(quantity).Round(4)
		if result.Best == nil || perUnit.LessThan(result.Best.PricePerUnit) {
			result.Best = &model.BestValue{
				StoreID:      cell.StoreID,
				Size:         cell.Size,
				Price:        cell.Price,
				PricePerUnit: perUnit,
			}
		}
	}

	return result
}
