package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSource tags where a stored price came from.
type PriceSource string

// Price source constants, ordered by trustworthiness for merges.
const (
	PriceSourceReceipt      PriceSource = "receipt"
	PriceSourceUser         PriceSource = "user"
	PriceSourceCrowdsourced PriceSource = "crowdsourced"
	PriceSourceAIEstimate   PriceSource = "ai_estimate"
	PriceSourceNone         PriceSource = ""
)

// ProvenanceRank returns the merge priority of a price source. Higher values
// win ties during dedup merges: receipt > user > crowdsourced > ai_estimate.
func (s PriceSource) ProvenanceRank() int {
	switch s {
	case PriceSourceReceipt:
		return 4
	case PriceSourceUser:
		return 3
	case PriceSourceCrowdsourced:
		return 2
	case PriceSourceAIEstimate:
		return 1
	default:
		return 0
	}
}

// StockLevel indicates how much of a pantry item remains.
type StockLevel string

// Stock level constants.
const (
	StockStocked StockLevel = "stocked"
	StockLow     StockLevel = "low"
	StockOut     StockLevel = "out"
)

// ItemStatus is the lifecycle state of a pantry item.
type ItemStatus string

// Item lifecycle constants. Archived items are tombstones left behind by
// dedup merges; they are excluded from matching and dedup passes.
const (
	ItemActive   ItemStatus = "active"
	ItemArchived ItemStatus = "archived"
)

// ListItem is an entry on a shopping list.
type ListItem struct {
	CreatedAt      time.Time
	ID             string
	ListID         string
	Name           string
	Category       string
	Size           string
	Unit           string
	Brand          string
	PriceSource    PriceSource
	EstimatedPrice decimal.Decimal
	Priority       int
	Checked        bool
}

// PantryItem is an item tracked in a user's pantry inventory.
type PantryItem struct {
	CreatedAt       time.Time
	LastPurchasedAt time.Time
	ID              string
	UserID          string
	Name            string
	Category        string
	Stock           StockLevel
	Status          ItemStatus
	PriceSource     PriceSource
	LastPrice       decimal.Decimal
	PurchaseCount   int
	Pinned          bool
}
