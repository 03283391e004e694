package model

// Store is a canonical retail store identity. Free-text store names from
// receipts are resolved to one of these by the store normalizer.
type Store struct {
	ID          string
	DisplayName string
	Color       string  // Brand color for UI rendering
	MarketShare float64 // 0..1, used to order ambiguous matches
	Aliases     []string
}
