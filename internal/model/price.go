package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceObservation is one confirmed sighting of a price. Append-only: never
// mutated after being recorded, only aggregated.
type PriceObservation struct {
	ObservedAt     time.Time
	ID             string
	NormalizedName string
	Size           string
	Unit           string
	StoreID        string
	ReporterID     string
	Price          decimal.Decimal
}

// CurrentPrice is the running aggregate for one (item, size, store) key.
// It is superseded by newer observations, never deleted.
type CurrentPrice struct {
	LastSeenAt     time.Time
	NormalizedName string
	Size           string
	StoreID        string
	UnitPrice      decimal.Decimal // Latest observation
	AveragePrice   decimal.Decimal // Recency-weighted mean
	MinPrice       decimal.Decimal
	MaxPrice       decimal.Decimal
	ReportCount    int
	Confidence     float64
	// AvgWeight is the accumulated decay weight behind AveragePrice. It is
	// aggregator bookkeeping, persisted so the fold can resume.
	AvgWeight float64
}

// PriceTrend summarizes how a price has moved over recent observations.
type PriceTrend struct {
	Direction     string // "up", "down", or "stable"
	ChangeAmount  decimal.Decimal
	ChangePercent float64
	PeriodDays    int
}

// PriceCell is one (store, size) entry in a comparison matrix.
type PriceCell struct {
	StoreID string
	Size    string
	Price   decimal.Decimal
}

// BestValue identifies the cell with the lowest price per unit quantity.
type BestValue struct {
	StoreID      string
	Size         string
	Price        decimal.Decimal
	PricePerUnit decimal.Decimal
}
