package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseSizeQuantity extracts the leading numeric quantity from a size
// string: "2pt" yields 2, "400g" yields 400, "1.5l" yields 1.5. The second
// return is false when the size has no parseable leading number or the
// number is zero, in which case the cell cannot enter a per-unit ranking.
func ParseSizeQuantity(size string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(size)

	end := 0
	seenDot := false
	for end < len(s) {
		c := s[end]
		if c >= '0' && c <= '9' {
			end++
			continue
		}
		if c == '.' && !seenDot && end > 0 {
			seenDot = true
			end++
			continue
		}
		break
	}
	if end == 0 {
		return decimal.Zero, false
	}

	quantity, err := decimal.NewFromString(strings.TrimSuffix(s[:end], "."))
	if err != nil || !quantity.IsPositive() {
		return decimal.Zero, false
	}
	return quantity, true
}
