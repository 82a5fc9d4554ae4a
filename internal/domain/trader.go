// Package domain defines the core data model of the radar: tracked traders,
// position snapshots, detected position changes, and convergence signals.
// It also declares the store and cache interfaces implemented by the
// postgres and redis packages.
package domain

import "time"

// TraderType classifies a tracked participant's behavioral profile.
type TraderType string

const (
	TraderTypeHuman       TraderType = "HUMAN"
	TraderTypeAlgo        TraderType = "ALGO"
	TraderTypeMarketMaker TraderType = "MARKET_MAKER"
)

// Trader is a wallet-identified participant on the watchlist. It carries the
// behavioral scores computed by the scoring package. A trader is never
// deleted; each watchlist rebuild overwrites the row with fresh stats.
type Trader struct {
	Wallet          string
	Username        string
	ProfileImage    string
	Type            TraderType
	Score           float64
	CategoryScores  map[string]float64 // absent category = insufficient sample, distinct from 0
	AvgPositionSize float64
	TotalClosed     int
	WinRate         float64
	ROI             float64
	ROINormalized   float64
	TimingQuality   float64
	Consistency     float64
	PnL             float64
	Volume          float64
	UpdatedAt       time.Time
}

// ClosedTrade is one resolved market position from a trader's history, used
// as scoring input. Synthesized from the activity feed by the watchlist
// builder.
type ClosedTrade struct {
	ConditionID string
	Title       string
	Outcome     string // "YES" or "NO"
	RealizedPnL float64
	TotalBought float64
	TotalSold   float64
	AvgPrice    float64
	Timestamp   time.Time
}
