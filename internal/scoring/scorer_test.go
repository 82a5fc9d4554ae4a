package scoring

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyradar/internal/domain"
)

var now = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func win(outcome string, entry float64) domain.ClosedTrade {
	return domain.ClosedTrade{Outcome: outcome, AvgPrice: entry, RealizedPnL: 10, TotalBought: 20}
}

func loss(outcome string, entry float64) domain.ClosedTrade {
	return domain.ClosedTrade{Outcome: outcome, AvgPrice: entry, RealizedPnL: -10, TotalBought: 20}
}

func TestWinRate(t *testing.T) {
	assert.Equal(t, 0.0, WinRate(nil))
	closed := []domain.ClosedTrade{win("YES", 0.3), win("NO", 0.7), loss("YES", 0.5), loss("YES", 0.5)}
	assert.Equal(t, 0.5, WinRate(closed))
}

func TestROIZeroBought(t *testing.T) {
	closed := []domain.ClosedTrade{{RealizedPnL: 5, TotalBought: 0}}
	assert.Equal(t, 0.0, ROI(closed))
}

func TestConsistency(t *testing.T) {
	assert.Equal(t, 0.0, Consistency(0.9, 0))
	assert.Equal(t, 0.0, Consistency(0.9, 1))
	assert.InDelta(t, 0.5*math.Log2(32), Consistency(0.5, 32), 1e-9)
}

func TestTimingQuality(t *testing.T) {
	closed := []domain.ClosedTrade{
		win("YES", 0.20), // 0.80
		win("NO", 0.70),  // 0.70
		loss("YES", 0.05),
	}
	assert.InDelta(t, 0.75, TimingQuality(closed), 1e-9)

	// No winners at all.
	assert.Equal(t, 0.0, TimingQuality([]domain.ClosedTrade{loss("YES", 0.5)}))
}

func TestAvgPositionSizeMedian(t *testing.T) {
	closed := []domain.ClosedTrade{
		{TotalBought: 10}, {TotalBought: 20}, {TotalBought: 1000},
	}
	assert.Equal(t, 20.0, AvgPositionSize(closed))

	closed = append(closed, domain.ClosedTrade{TotalBought: 30})
	assert.Equal(t, 25.0, AvgPositionSize(closed))

	assert.Equal(t, 0.0, AvgPositionSize(nil))
}

func TestClassifyTypeAlgoByCount(t *testing.T) {
	closed := make([]domain.ClosedTrade, AlgoTradeCount)
	for i := range closed {
		closed[i] = domain.ClosedTrade{ConditionID: fmt.Sprintf("m%d", i), Outcome: "YES"}
	}
	assert.Equal(t, domain.TraderTypeAlgo, ClassifyType(closed, 1000, 5000))
}

func TestClassifyTypeAlgoByTurnover(t *testing.T) {
	closed := []domain.ClosedTrade{win("YES", 0.5)}
	// volume / |pnl| = 2000/100 = 20 > 10
	assert.Equal(t, domain.TraderTypeAlgo, ClassifyType(closed, 100, 2000))
	// 500/100 = 5 <= 10
	assert.Equal(t, domain.TraderTypeHuman, ClassifyType(closed, 100, 500))
}

func TestClassifyTypeMarketMaker(t *testing.T) {
	// 2 of 4 markets traded on both sides.
	closed := []domain.ClosedTrade{
		{ConditionID: "m1", Outcome: "YES"}, {ConditionID: "m1", Outcome: "NO"},
		{ConditionID: "m2", Outcome: "YES"}, {ConditionID: "m2", Outcome: "NO"},
		{ConditionID: "m3", Outcome: "YES"},
		{ConditionID: "m4", Outcome: "NO"},
	}
	assert.Equal(t, domain.TraderTypeMarketMaker, ClassifyType(closed, 100, 200))
}

func TestScoreExcludesZeroTradeTrader(t *testing.T) {
	_, ok := Score("0xabc", "ghost", nil, 100, 200, now)
	assert.False(t, ok)
}

func TestCategoryScoresSampleFloor(t *testing.T) {
	var closed []domain.ClosedTrade
	// 12 political wins, 3 crypto wins.
	for i := 0; i < 12; i++ {
		c := win("YES", 0.3)
		c.Title = "Will Trump win the election?"
		closed = append(closed, c)
	}
	for i := 0; i < 3; i++ {
		c := win("YES", 0.3)
		c.Title = "Bitcoin above 100k?"
		closed = append(closed, c)
	}

	scores := CategoryScores(closed)
	require.Contains(t, scores, "POLITICS")
	assert.Greater(t, scores["POLITICS"], 0.0)

	// Insufficient sample is absent, not zero.
	_, present := scores["CRYPTO"]
	assert.False(t, present)
}

func TestFinalizeNormalizesROI(t *testing.T) {
	traders := []domain.Trader{
		{Wallet: "a", Type: domain.TraderTypeHuman, ROI: 0.1, Consistency: 2, TimingQuality: 0.5},
		{Wallet: "b", Type: domain.TraderTypeHuman, ROI: 0.5, Consistency: 2, TimingQuality: 0.5},
		{Wallet: "c", Type: domain.TraderTypeHuman, ROI: 0.3, Consistency: 2, TimingQuality: 0.5},
	}
	Finalize(traders)

	assert.Equal(t, 0.0, traders[0].ROINormalized)
	assert.Equal(t, 1.0, traders[1].ROINormalized)
	assert.InDelta(t, 0.5, traders[2].ROINormalized, 1e-9)

	// score = consistency × roi_normalized × (1 + timing)
	assert.InDelta(t, 2*1.0*1.5, traders[1].Score, 1e-9)
	assert.Equal(t, 0.0, traders[0].Score)
}

func TestFinalizeZeroSpreadIsNeutral(t *testing.T) {
	traders := []domain.Trader{
		{Wallet: "a", Type: domain.TraderTypeHuman, ROI: 0.2, Consistency: 2, TimingQuality: 0},
		{Wallet: "b", Type: domain.TraderTypeHuman, ROI: 0.2, Consistency: 4, TimingQuality: 0},
	}
	Finalize(traders)
	assert.Equal(t, 0.5, traders[0].ROINormalized)
	assert.Equal(t, 0.5, traders[1].ROINormalized)
	assert.InDelta(t, 1.0, traders[0].Score, 1e-9)
	assert.InDelta(t, 2.0, traders[1].Score, 1e-9)
}

func TestFinalizeAlgoScore(t *testing.T) {
	traders := []domain.Trader{
		{Wallet: "a", Type: domain.TraderTypeAlgo, ROI: 0.1, Consistency: 3, PnL: 1000, Volume: 100000},
	}
	Finalize(traders)
	// efficiency = 0.01, log10(volume) = 5, consistency = 3
	assert.InDelta(t, 0.01*5*3, traders[0].Score, 1e-9)
}

func TestClassifyCategory(t *testing.T) {
	assert.Equal(t, "POLITICS", ClassifyCategory("Will Trump win the 2024 election?"))
	assert.Equal(t, "CRYPTO", ClassifyCategory("Bitcoin above $100k by March?"))
	assert.Equal(t, "ESPORTS", ClassifyCategory("T1 to win League of Legends Worlds 2025?"))
	assert.Equal(t, "SPORTS", ClassifyCategory("Lakers to make the NBA playoffs?"))
	assert.Equal(t, domain.CategoryOther, ClassifyCategory("Will it be a leap year?"))
	assert.Equal(t, domain.CategoryOther, ClassifyCategory(""))

	// Short keywords need word boundaries: "sol" must not match "solution".
	assert.Equal(t, domain.CategoryOther, ClassifyCategory("Will the solution be found?"))
}
