package domain

import "time"

// PositionKey identifies a position slot: one (market, outcome) pair.
type PositionKey struct {
	ConditionID string
	Outcome     string
}

// Position is a single open position inside a snapshot.
type Position struct {
	ConditionID  string
	Title        string
	Slug         string
	EventSlug    string
	Outcome      string // "YES" or "NO", upper-cased at ingestion
	Size         float64
	AvgPrice     float64
	CurPrice     float64
	CurrentValue float64
}

// Key returns the (market, outcome) key for diffing.
func (p Position) Key() PositionKey {
	return PositionKey{ConditionID: p.ConditionID, Outcome: p.Outcome}
}

// PositionSnapshot is the full set of a trader's open positions at one scan
// instant. Snapshots are immutable once written; only the latest per wallet
// is consulted for diffing, older rows are retained for audit until archived.
type PositionSnapshot struct {
	Wallet    string
	Positions []Position
	ScannedAt time.Time
}

// ByKey indexes the snapshot's positions by (market, outcome).
func (s PositionSnapshot) ByKey() map[PositionKey]Position {
	m := make(map[PositionKey]Position, len(s.Positions))
	for _, p := range s.Positions {
		m[p.Key()] = p
	}
	return m
}
