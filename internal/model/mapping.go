package model

import "time"

// LearnedMapping is a user-confirmed association from a receipt name to a
// canonical item name. Both names are stored normalized. Mappings are the
// strongest matching signal and are scoped per user.
type LearnedMapping struct {
	CreatedAt     time.Time
	LastUsedAt    time.Time
	UserID        string
	ReceiptName   string
	CanonicalName string
	UseCount      int
}
