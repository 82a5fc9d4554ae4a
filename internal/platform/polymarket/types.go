package polymarket

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/alanyoungcy/polyradar/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "closed" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// --------------------------------------------------------------------------
// Data API DTOs
// --------------------------------------------------------------------------

// APIPosition is one open position from the Data API /positions endpoint.
type APIPosition struct {
	ProxyWallet  string  `json:"proxyWallet"`
	Asset        string  `json:"asset"`
	ConditionID  string  `json:"conditionId"`
	Title        string  `json:"title"`
	Slug         string  `json:"slug"`
	EventSlug    string  `json:"eventSlug"`
	Outcome      string  `json:"outcome"` // "Yes" or "No"
	Size         float64 `json:"size"`
	AvgPrice     float64 `json:"avgPrice"`
	CurPrice     float64 `json:"curPrice"`
	CurrentValue float64 `json:"currentValue"`
	CashPnL      float64 `json:"cashPnl"`
	Redeemable   bool    `json:"redeemable"`
}

// ToDomainPosition converts the API shape to the domain model. Outcomes are
// upper-cased so "Yes"/"No" and "YES"/"NO" key identically downstream.
func (p *APIPosition) ToDomainPosition() domain.Position {
	return domain.Position{
		ConditionID:  p.ConditionID,
		Title:        p.Title,
		Slug:         p.Slug,
		EventSlug:    p.EventSlug,
		Outcome:      strings.ToUpper(p.Outcome),
		Size:         p.Size,
		AvgPrice:     p.AvgPrice,
		CurPrice:     p.CurPrice,
		CurrentValue: p.CurrentValue,
	}
}

// APIActivity is one row from the Data API /activity endpoint.
type APIActivity struct {
	ProxyWallet string  `json:"proxyWallet"`
	ConditionID string  `json:"conditionId"`
	Title       string  `json:"title"`
	Type        string  `json:"type"` // "TRADE", "REDEEM", "SPLIT", "MERGE"
	Side        string  `json:"side"` // "BUY" or "SELL" (TRADE only)
	Outcome     string  `json:"outcome"`
	Size        float64 `json:"size"`
	USDCSize    float64 `json:"usdcSize"`
	Price       float64 `json:"price"`
	Timestamp   int64   `json:"timestamp"` // unix seconds
}

// Time returns the activity timestamp as time.Time.
func (a *APIActivity) Time() time.Time {
	return time.Unix(a.Timestamp, 0).UTC()
}

// APILeaderboardEntry is one row from the Data API leaderboard.
type APILeaderboardEntry struct {
	ProxyWallet  string  `json:"proxyWallet"`
	Name         string  `json:"name"`
	ProfileImage string  `json:"profileImage"`
	Amount       float64 `json:"amount"` // ranked quantity (pnl or volume)
	PnL          float64 `json:"pnl"`
	Volume       float64 `json:"vol"`
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIMarket is a market as returned by the Gamma API, reduced to the fields
// the radar consumes.
type APIMarket struct {
	ID          string     `json:"id"`
	ConditionID string     `json:"conditionId"`
	Question    string     `json:"question"`
	Slug        string     `json:"slug"`
	Category    string     `json:"category"`
	Active      flexBool   `json:"active"`
	Closed      flexBool   `json:"closed"`
	Volume      string     `json:"volume"`
	Tokens      []APIToken `json:"tokens"`
}

// APIToken is one outcome token inside a Gamma market.
type APIToken struct {
	TokenID string `json:"token_id"`
	Outcome string `json:"outcome"` // "Yes" or "No"
	Price   string `json:"price"`
	Winner  bool   `json:"winner"`
}

// ToResolution derives the resolution state from the market's closed flag
// and winning token.
func (m *APIMarket) ToResolution() domain.MarketResolution {
	res := domain.MarketResolution{
		ConditionID: m.ConditionID,
		Resolved:    bool(m.Closed),
	}
	if !res.Resolved {
		return res
	}
	for _, t := range m.Tokens {
		if t.Winner {
			res.WinningOutcome = strings.ToUpper(t.Outcome)
			break
		}
	}
	return res
}
