// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptLine is one transcribed line item from a receipt. Lines are owned by
// the Receipt that produced them and are never persisted on their own.
type ReceiptLine struct {
	Name       string          `json:"name"`
	Quantity   float64         `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Confidence float64         `json:"confidence"` // OCR confidence, 0..1
	Category   string          `json:"category,omitempty"`
}

// Receipt represents one ingested receipt: a store, a purchase date, and the
// line items the OCR pipeline extracted from it.
type Receipt struct {
	PurchasedAt time.Time
	IngestedAt  time.Time
	ID          string
	StoreID     string
	StoreName   string // Raw store text as it appeared on the receipt
	Hash        string
	Lines       []ReceiptLine
}

// GenerateHash creates a unique hash for duplicate-ingest detection.
func (r *Receipt) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%d",
		r.PurchasedAt.Format("2006-01-02"),
		r.StoreName,
		len(r.Lines))
	for _, line := range r.Lines {
		data += fmt.Sprintf(":%s=%s", line.Name, line.TotalPrice.String())
	}
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// Total sums the line totals for display.
func (r *Receipt) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range r.Lines {
		total = total.Add(line.TotalPrice)
	}
	return total
}
