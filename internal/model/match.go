package model

import (
	"fmt"
	"time"
)

// ItemRefKind discriminates the two canonical item types a candidate match
// can point at.
type ItemRefKind string

// Item reference kinds.
const (
	RefListItem   ItemRefKind = "list"
	RefPantryItem ItemRefKind = "pantry"
)

// ItemRef is a typed reference to a canonical item. Replaces the loose
// document references the matcher used to juggle.
type ItemRef struct {
	Kind ItemRefKind
	ID   string
}

func (r ItemRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// MatchReason explains one component of a candidate's score.
type MatchReason string

// Match reason constants.
const (
	ReasonTokenOverlap   MatchReason = "token_overlap"
	ReasonCategoryMatch  MatchReason = "category_match"
	ReasonPriceMatch     MatchReason = "price_match"
	ReasonFuzzyName      MatchReason = "fuzzy"
	ReasonLearnedMapping MatchReason = "learned_mapping"
)

// reasonLabels maps match reasons to the labels the review UI shows.
var reasonLabels = map[MatchReason]string{
	ReasonTokenOverlap:   "Similar words",
	ReasonCategoryMatch:  "Same category",
	ReasonPriceMatch:     "Similar price",
	ReasonFuzzyName:      "Similar name",
	ReasonLearnedMapping: "Previously matched",
}

// Label returns the human-readable form of a match reason. Detail suffixes
// (e.g. "token_overlap:0.85") are stripped before lookup.
func (r MatchReason) Label() string {
	base := r
	for i := 0; i < len(r); i++ {
		if r[i] == ':' {
			base = r[:i]
			break
		}
	}
	if label, ok := reasonLabels[base]; ok {
		return label
	}
	return string(base)
}

// WithDetail attaches a detail suffix to a reason, e.g. the overlap ratio.
func (r MatchReason) WithDetail(detail string) MatchReason {
	return MatchReason(fmt.Sprintf("%s:%s", r, detail))
}

// CandidateMatch is one scored candidate for a receipt line. Ephemeral:
// produced per line, persisted only as part of a PendingMatch snapshot.
type CandidateMatch struct {
	Target      *ItemRef      `json:"target,omitempty"`
	TargetName  string        `json:"target_name"`
	Score       int           `json:"score"` // 0..100
	Reasons     []MatchReason `json:"reasons"`
	TargetPrice string        `json:"target_price,omitempty"`
	// SortCreatedAt carries the candidate's creation time (unix nanos) for
	// tie-breaking; it is not part of the persisted snapshot.
	SortCreatedAt int64 `json:"-"`
}

// PendingMatchStatus is the review state of a pending match.
type PendingMatchStatus string

// Pending match states. The three non-pending states are terminal.
const (
	MatchPending   PendingMatchStatus = "pending"
	MatchConfirmed PendingMatchStatus = "confirmed"
	MatchSkipped   PendingMatchStatus = "skipped"
	MatchNoMatch   PendingMatchStatus = "no_match"
)

// IsTerminal reports whether the status is a resolved end state.
func (s PendingMatchStatus) IsTerminal() bool {
	return s == MatchConfirmed || s == MatchSkipped || s == MatchNoMatch
}

// PendingMatch holds one receipt line the matcher could not auto-resolve,
// together with the candidate list computed at ingest time. The candidate
// list is a snapshot: it is never rescored after creation.
type PendingMatch struct {
	CreatedAt  time.Time
	ResolvedAt time.Time
	ID         string
	ReceiptID  string
	Status     PendingMatchStatus
	Line       ReceiptLine
	Candidates []CandidateMatch
	// Resolution records which candidate was confirmed, if any.
	Resolution *ItemRef
	Position   int // Stable per-receipt ordering for "n of total" displays
}
