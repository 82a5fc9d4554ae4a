package domain

import "time"

// SignalStatus is the lifecycle state of a signal.
type SignalStatus string

const (
	SignalActive    SignalStatus = "ACTIVE"
	SignalWeakening SignalStatus = "WEAKENING"
	SignalClosed    SignalStatus = "CLOSED"
	SignalResolved  SignalStatus = "RESOLVED"
)

// Terminal reports whether the status accepts no further transitions.
func (s SignalStatus) Terminal() bool {
	return s == SignalClosed || s == SignalResolved
}

// Contribution is one trader's participation in a signal, frozen by value at
// contribution time. Later rescoring of the trader must never alter it.
type Contribution struct {
	Wallet        string     `json:"wallet"`
	Username      string     `json:"username,omitempty"`
	TraderType    TraderType `json:"trader_type"`
	TraderScore   float64    `json:"trader_score"`
	WinRate       float64    `json:"win_rate"`
	Conviction    float64    `json:"conviction"`
	CategoryMatch float64    `json:"category_match"`
	Freshness     float64    `json:"freshness"`
	Kind          ChangeKind `json:"change_kind"`
	Size          float64    `json:"size"`
	DetectedAt    time.Time  `json:"detected_at"`
}

// Weight is the trader's contribution to the signal score.
func (c Contribution) Weight() float64 {
	return c.TraderScore * c.Conviction * c.CategoryMatch * c.Freshness
}

// Signal is a detected convergence of traders on one side of one market.
// At most one non-terminal signal exists per (condition, direction) pair;
// all evidence inside the window accumulates into it.
//
// Field ownership is split by writer: the detector owns score and
// contributions, the lifecycle manager owns Status, and the reconciler owns
// the resolution fields. No two writers touch the same column.
type Signal struct {
	ID          string
	ConditionID string
	MarketTitle string
	MarketSlug  string
	Direction   string // outcome side, "YES" or "NO"
	Category    string

	Score         float64
	PeakScore     float64
	Tier          int
	Status        SignalStatus
	Contributions []Contribution
	EntryPrice    float64 // market price when the signal was created

	CreatedAt time.Time
	UpdatedAt time.Time

	ResolvedAt        *time.Time
	ResolutionOutcome string
	PnLPercent        *float64

	Alerted           bool
	ResolutionAlerted bool
}

// Contributor reports whether the given wallet is already a member.
func (s *Signal) Contributor(wallet string) bool {
	for _, c := range s.Contributions {
		if c.Wallet == wallet {
			return true
		}
	}
	return false
}

// MergeContribution inserts or replaces a contribution keyed by wallet.
// A repeat contribution from the same trader supersedes the prior entry.
func (s *Signal) MergeContribution(c Contribution) {
	for i := range s.Contributions {
		if s.Contributions[i].Wallet == c.Wallet {
			s.Contributions[i] = c
			return
		}
	}
	s.Contributions = append(s.Contributions, c)
}

// RecomputeScore sums contribution weights and advances the peak.
func (s *Signal) RecomputeScore() {
	total := 0.0
	for _, c := range s.Contributions {
		total += c.Weight()
	}
	s.Score = total
	if total > s.PeakScore {
		s.PeakScore = total
	}
}

// LastEvidenceAt returns the newest contribution detection time, or the
// zero time when the signal has no contributions.
func (s *Signal) LastEvidenceAt() time.Time {
	var last time.Time
	for _, c := range s.Contributions {
		if c.DetectedAt.After(last) {
			last = c.DetectedAt
		}
	}
	return last
}
