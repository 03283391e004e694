package model

// DuplicateGroup is a transient grouping of pantry items judged identical.
// Groups are recomputed on demand and resolved by an explicit merge; they
// are never stored.
type DuplicateGroup struct {
	NormalizedName string
	Category       string
	Items          []PantryItem
}

// MergePlan is the deterministic resolution of a duplicate group: one item
// to keep, the rest to archive. UpgradedPrice notes whether price data from
// an archived item was copied onto the keeper.
type MergePlan struct {
	KeepID        string
	ArchiveIDs    []string
	UpgradedPrice bool
	// PriceFromID names the archived item whose price is copied onto the
	// keeper, when that price has strictly better provenance.
	PriceFromID string
}
