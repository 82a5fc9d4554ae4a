package domain

// CategoryOther is the fallback bucket when a market title matches no known
// category. Scoring must never see an empty category.
const CategoryOther = "OTHER"

// MarketResolution is the resolution state of a market as reported by the
// metadata feed.
type MarketResolution struct {
	ConditionID    string
	Resolved       bool
	WinningOutcome string // "YES" or "NO", only meaningful when Resolved
}
