// Package ingest decodes OCR receipt output files into receipts.
package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shelfwise/shelfwise/internal/common"
	"github.com/shelfwise/shelfwise/internal/model"
)

// receiptFile is the OCR pipeline's output format: a store/date header plus
// one record per transcribed line.
type receiptFile struct {
	Store string            `json:"store"`
	Date  string            `json:"date"`
	Lines []receiptFileLine `json:"lines"`
}

type receiptFileLine struct {
	Name       string          `json:"name"`
	Quantity   float64         `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Confidence float64         `json:"confidence"`
	Category   string          `json:"category"`
}

// dateFormats lists accepted purchase-date layouts, most common first.
var dateFormats = []string{
	"2006-01-02",
	time.RFC3339,
	"02/01/2006",
}

// ParseFile reads one OCR output file and builds a receipt from it.
func ParseFile(path string) (*model.Receipt, error) {
	f, err := os.Open(path) // #nosec G304 -- user-supplied input file
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("could not read receipt file %s", path), err)
	}
	defer func() { _ = f.Close() }()

	receipt, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return receipt, nil
}

// Parse decodes OCR receipt JSON into a receipt. Lines the OCR pass left
// nameless are dropped; a receipt with no usable lines is rejected.
func Parse(r io.Reader) (*model.Receipt, error) {
	var file receiptFile
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	if strings.TrimSpace(file.Store) == "" {
		return nil, fmt.Errorf("%w: missing store", common.ErrValidation)
	}

	purchasedAt, err := parseDate(file.Date)
	if err != nil {
		return nil, err
	}

	receipt := &model.Receipt{
		ID:          uuid.New().String(),
		StoreName:   strings.TrimSpace(file.Store),
		PurchasedAt: purchasedAt,
		IngestedAt:  time.Now(),
	}

	for _, line := range file.Lines {
		name := strings.TrimSpace(line.Name)
		if name == "" {
			continue
		}
		quantity := line.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		total := line.TotalPrice
		if total.IsZero() && line.UnitPrice.IsPositive() {
			total = line.UnitPrice.Mul(decimal.NewFromFloat(quantity))
		}
		receipt.Lines = append(receipt.Lines, model.ReceiptLine{
			Name:       name,
			Quantity:   quantity,
			UnitPrice:  line.UnitPrice,
			TotalPrice: total,
			Confidence: clampConfidence(line.Confidence),
			Category:   line.Category,
		})
	}

	if len(receipt.Lines) == 0 {
		return nil, common.ErrNoLines
	}

	receipt.Hash = receipt.GenerateHash()
	return receipt, nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: missing date", common.ErrValidation)
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable date %q", common.ErrValidation, raw)
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
