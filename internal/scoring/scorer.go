// Package scoring classifies tracked traders from their closed-trade history
// and computes the behavioral scores consumed by the convergence detector.
// All functions are pure; the watchlist builder drives them and persists the
// results.
package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/alanyoungcy/polyradar/internal/domain"
)

// Thresholds for classification and category scoring.
const (
	// AlgoTradeCount marks a trader ALGO on raw closed-trade volume alone.
	AlgoTradeCount = 200
	// AlgoTurnoverRatio marks a trader ALGO when volume / |pnl| exceeds it.
	AlgoTurnoverRatio = 10.0
	// MinCategoryTrades is the sample floor below which a category sub-score
	// is left absent (absent and zero are distinct downstream).
	MinCategoryTrades = 10
	// MakerBothSidesRatio: share of markets traded on both outcomes above
	// which the trader is tagged MARKET_MAKER.
	MakerBothSidesRatio = 0.20
)

// WinRate is the fraction of closed trades with positive realized PnL.
func WinRate(closed []domain.ClosedTrade) float64 {
	if len(closed) == 0 {
		return 0
	}
	wins := 0
	for _, c := range closed {
		if c.RealizedPnL > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(closed))
}

// ROI is total realized PnL over total bought. Zero when nothing was bought.
func ROI(closed []domain.ClosedTrade) float64 {
	var pnl, bought float64
	for _, c := range closed {
		pnl += c.RealizedPnL
		bought += c.TotalBought
	}
	if bought == 0 {
		return 0
	}
	return pnl / bought
}

// Consistency is win_rate × log2(n). A sample of one or fewer carries no
// consistency information and scores zero.
func Consistency(winRate float64, totalClosed int) float64 {
	if totalClosed <= 1 {
		return 0
	}
	return winRate * math.Log2(float64(totalClosed))
}

// TimingQuality averages, over winning trades only, how cheap the correct
// side was entered: (1 − entry) for YES wins, entry for NO wins. The result
// is in [0, 1]; no winning trades yields 0.
func TimingQuality(closed []domain.ClosedTrade) float64 {
	var sum float64
	n := 0
	for _, c := range closed {
		if c.RealizedPnL <= 0 {
			continue
		}
		switch c.Outcome {
		case "YES":
			sum += 1.0 - c.AvgPrice
		case "NO":
			sum += c.AvgPrice
		default:
			continue
		}
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// AvgPositionSize is the median bought notional across closed trades, the
// denominator of conviction. Median rather than mean so one outsized bet
// does not dilute every later conviction reading.
func AvgPositionSize(closed []domain.ClosedTrade) float64 {
	sizes := make([]float64, 0, len(closed))
	for _, c := range closed {
		if c.TotalBought > 0 {
			sizes = append(sizes, c.TotalBought)
		}
	}
	if len(sizes) == 0 {
		return 0
	}
	sort.Float64s(sizes)
	mid := len(sizes) / 2
	if len(sizes)%2 == 1 {
		return sizes[mid]
	}
	return (sizes[mid-1] + sizes[mid]) / 2
}

// CategoryScores computes per-category sub-scores over trades in that
// category. Categories with fewer than MinCategoryTrades closed trades are
// omitted entirely rather than scored zero.
func CategoryScores(closed []domain.ClosedTrade) map[string]float64 {
	byCat := map[string][]domain.ClosedTrade{}
	for _, c := range closed {
		cat := ClassifyCategory(c.Title)
		byCat[cat] = append(byCat[cat], c)
	}

	scores := map[string]float64{}
	for cat, trades := range byCat {
		if len(trades) < MinCategoryTrades {
			continue
		}
		wr := WinRate(trades)
		consistency := Consistency(wr, len(trades))
		scores[cat] = consistency * (1 + ROI(trades))
	}
	return scores
}

// ClassifyType tags the trader from behavioral thresholds. ALGO rules are
// checked first, then the market-maker heuristic (trading both outcomes of
// the same market in more than MakerBothSidesRatio of markets), then HUMAN.
func ClassifyType(closed []domain.ClosedTrade, pnl, volume float64) domain.TraderType {
	if len(closed) >= AlgoTradeCount {
		return domain.TraderTypeAlgo
	}
	absPnL := math.Abs(pnl)
	if absPnL > 0 && volume/absPnL > AlgoTurnoverRatio {
		return domain.TraderTypeAlgo
	}

	byMarket := map[string]map[string]bool{}
	for _, c := range closed {
		if c.ConditionID == "" {
			continue
		}
		if byMarket[c.ConditionID] == nil {
			byMarket[c.ConditionID] = map[string]bool{}
		}
		byMarket[c.ConditionID][c.Outcome] = true
	}
	if len(byMarket) > 0 {
		bothSides := 0
		for _, outcomes := range byMarket {
			if len(outcomes) > 1 {
				bothSides++
			}
		}
		if float64(bothSides)/float64(len(byMarket)) > MakerBothSidesRatio {
			return domain.TraderTypeMarketMaker
		}
	}

	return domain.TraderTypeHuman
}

// Score builds a fully-populated Trader from its closed history and
// leaderboard aggregates. ROINormalized and the final Score are filled later
// by Finalize once the whole cohort is known.
//
// A trader with zero closed trades carries no signal (and log2(0) is
// undefined); it is excluded from the population and ok is false.
func Score(wallet, username string, closed []domain.ClosedTrade, pnl, volume float64, now time.Time) (domain.Trader, bool) {
	if len(closed) == 0 {
		return domain.Trader{}, false
	}

	winRate := WinRate(closed)
	t := domain.Trader{
		Wallet:          wallet,
		Username:        username,
		Type:            ClassifyType(closed, pnl, volume),
		WinRate:         winRate,
		ROI:             ROI(closed),
		Consistency:     Consistency(winRate, len(closed)),
		TimingQuality:   TimingQuality(closed),
		AvgPositionSize: AvgPositionSize(closed),
		CategoryScores:  CategoryScores(closed),
		TotalClosed:     len(closed),
		PnL:             pnl,
		Volume:          volume,
		UpdatedAt:       now,
	}
	return t, true
}

// Finalize min-max normalizes ROI across the cohort and computes each
// trader's final score. It must be re-run whenever the tracked population
// changes, since the normalization is relative to this cohort, not a global
// baseline. A zero ROI spread normalizes everyone to a neutral 0.5.
func Finalize(traders []domain.Trader) {
	if len(traders) == 0 {
		return
	}

	minROI, maxROI := traders[0].ROI, traders[0].ROI
	for _, t := range traders[1:] {
		if t.ROI < minROI {
			minROI = t.ROI
		}
		if t.ROI > maxROI {
			maxROI = t.ROI
		}
	}
	spread := maxROI - minROI

	for i := range traders {
		t := &traders[i]
		if spread == 0 {
			t.ROINormalized = 0.5
		} else {
			t.ROINormalized = (t.ROI - minROI) / spread
		}
		t.Score = finalScore(t)
	}
}

// finalScore applies the per-type scoring formula. Timing is ignored for
// ALGO traders: entry timing is irrelevant to mechanical strategies.
func finalScore(t *domain.Trader) float64 {
	switch t.Type {
	case domain.TraderTypeAlgo:
		if t.Volume <= 0 {
			return 0
		}
		efficiency := t.PnL / t.Volume
		return efficiency * math.Log10(t.Volume) * t.Consistency
	default:
		return t.Consistency * t.ROINormalized * (1 + t.TimingQuality)
	}
}
