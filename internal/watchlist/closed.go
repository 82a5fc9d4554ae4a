package watchlist

import (
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/polyradar/internal/domain"
	"github.com/alanyoungcy/polyradar/internal/platform/polymarket"
)

// exitedShareRatio is how much of the bought share count must be sold or
// redeemed before a position counts as closed. Slightly under 1 absorbs dust
// left by rounding in the activity feed.
const exitedShareRatio = 0.99

// positionLedger accumulates one (market, outcome) slot's activity.
type positionLedger struct {
	conditionID  string
	title        string
	outcome      string
	sharesBought float64
	sharesOut    float64 // sold or redeemed
	boughtUSD    float64
	proceedsUSD  float64
	lastAt       time.Time
}

// SynthesizeClosed folds raw activity rows into closed trades for scoring.
// A slot is closed once (almost) all bought shares have been sold or
// redeemed; realized PnL is proceeds minus cost. Open slots are ignored:
// unrealized results say nothing about a finished track record.
func SynthesizeClosed(activity []polymarket.APIActivity) []domain.ClosedTrade {
	ledgers := map[domain.PositionKey]*positionLedger{}

	for i := range activity {
		row := &activity[i]
		outcome := strings.ToUpper(row.Outcome)
		key := domain.PositionKey{ConditionID: row.ConditionID, Outcome: outcome}

		ledger, ok := ledgers[key]
		if !ok {
			ledger = &positionLedger{
				conditionID: row.ConditionID,
				title:       row.Title,
				outcome:     outcome,
			}
			ledgers[key] = ledger
		}
		if at := row.Time(); at.After(ledger.lastAt) {
			ledger.lastAt = at
			ledger.title = row.Title
		}

		switch row.Type {
		case "TRADE":
			switch row.Side {
			case "BUY":
				ledger.sharesBought += row.Size
				ledger.boughtUSD += row.USDCSize
			case "SELL":
				ledger.sharesOut += row.Size
				ledger.proceedsUSD += row.USDCSize
			}
		case "REDEEM":
			ledger.sharesOut += row.Size
			ledger.proceedsUSD += row.USDCSize
		}
	}

	var closed []domain.ClosedTrade
	for _, ledger := range ledgers {
		if ledger.sharesBought <= 0 {
			continue
		}
		if ledger.sharesOut < ledger.sharesBought*exitedShareRatio {
			continue
		}
		closed = append(closed, domain.ClosedTrade{
			ConditionID: ledger.conditionID,
			Title:       ledger.title,
			Outcome:     ledger.outcome,
			RealizedPnL: ledger.proceedsUSD - ledger.boughtUSD,
			TotalBought: ledger.boughtUSD,
			TotalSold:   ledger.proceedsUSD,
			AvgPrice:    ledger.boughtUSD / ledger.sharesBought,
			Timestamp:   ledger.lastAt,
		})
	}

	sort.Slice(closed, func(i, j int) bool {
		return closed[i].Timestamp.Before(closed[j].Timestamp)
	})
	return closed
}
