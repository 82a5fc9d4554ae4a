package domain

import "time"

// ChangeKind is the type of a detected position change.
type ChangeKind string

const (
	ChangeOpen     ChangeKind = "OPEN"
	ChangeIncrease ChangeKind = "INCREASE"
	ChangeDecrease ChangeKind = "DECREASE"
	ChangeClose    ChangeKind = "CLOSE"
)

// Expansion reports whether the change adds exposure (OPEN or INCREASE).
func (k ChangeKind) Expansion() bool {
	return k == ChangeOpen || k == ChangeIncrease
}

// Contraction reports whether the change removes exposure (DECREASE or CLOSE).
func (k ChangeKind) Contraction() bool {
	return k == ChangeDecrease || k == ChangeClose
}

// PositionChange is an immutable fact recorded when a diff between two
// snapshots detects movement in one position slot. Produced only by the diff
// package and never mutated.
type PositionChange struct {
	ID          int64
	Wallet      string
	ConditionID string
	Title       string
	Slug        string
	EventSlug   string
	Outcome     string
	Kind        ChangeKind
	OldSize     float64
	NewSize     float64
	Price       float64 // market price at detection
	Conviction  float64 // notional delta relative to the trader's average position size
	DetectedAt  time.Time
}
