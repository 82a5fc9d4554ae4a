package detector

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyradar/internal/domain"
	"github.com/alanyoungcy/polyradar/internal/domain/domaintest"
)

var passTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	traders *domaintest.TraderStore
	signals *domaintest.SignalStore
	changes *domaintest.ChangeStore
	locks   *domaintest.LockManager
	bus     *domaintest.SignalBus
	det     *Detector
}

func newFixture(t *testing.T, traders []domain.Trader, changes []domain.PositionChange) *fixture {
	t.Helper()
	f := &fixture{
		traders: domaintest.NewTraderStore(traders...),
		signals: domaintest.NewSignalStore(),
		changes: domaintest.NewChangeStore(changes...),
		locks:   domaintest.NewLockManager(),
		bus:     domaintest.NewSignalBus(),
	}
	f.det = New(f.traders, f.signals, f.changes, nil, f.locks, f.bus,
		24*time.Hour, slog.New(slog.DiscardHandler))
	f.det.now = func() time.Time { return passTime }
	return f
}

func trader(wallet string, score float64, cats map[string]float64) domain.Trader {
	return domain.Trader{
		Wallet:         wallet,
		Type:           domain.TraderTypeHuman,
		Score:          score,
		CategoryScores: cats,
	}
}

func change(wallet, cid, title, outcome string, kind domain.ChangeKind, conviction float64, age time.Duration) domain.PositionChange {
	return domain.PositionChange{
		Wallet:      wallet,
		ConditionID: cid,
		Title:       title,
		Outcome:     outcome,
		Kind:        kind,
		NewSize:     100,
		Price:       0.40,
		Conviction:  conviction,
		DetectedAt:  passTime.Add(-age),
	}
}

// Three traders open YES within an hour: scores 10/8/6, convictions
// 1.0/1.5/2.0, category match 1.5 each, freshness 2.0 each. Expected score
// 30 + 36 + 36 = 102 and tier 1.
func TestRunThreeWayConvergence(t *testing.T) {
	politics := map[string]float64{"POLITICS": 1.2}
	title := "Will Trump win the election?"
	f := newFixture(t,
		[]domain.Trader{
			trader("0xa", 10, politics),
			trader("0xb", 8, politics),
			trader("0xc", 6, politics),
		},
		[]domain.PositionChange{
			change("0xa", "m1", title, "YES", domain.ChangeOpen, 1.0, time.Hour),
			change("0xb", "m1", title, "YES", domain.ChangeOpen, 1.5, time.Hour),
			change("0xc", "m1", title, "YES", domain.ChangeOpen, 2.0, time.Hour),
		},
	)

	stats, err := f.det.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 0, stats.Contested)

	sig, err := f.signals.GetOpen(context.Background(), "m1", "YES")
	require.NoError(t, err)
	assert.InDelta(t, 102.0, sig.Score, 1e-9)
	assert.InDelta(t, 102.0, sig.PeakScore, 1e-9)
	assert.Equal(t, 1, sig.Tier)
	assert.Equal(t, domain.SignalActive, sig.Status)
	assert.Equal(t, "POLITICS", sig.Category)
	assert.Equal(t, 0.40, sig.EntryPrice)
	assert.Len(t, sig.Contributions, 3)

	// Lock scoped to the (condition, direction) key, and an event published.
	assert.Contains(t, f.locks.Acquired, "signal:m1:YES")
	assert.Len(t, f.bus.Published["signals:new"], 1)
}

func TestRunContestedGroupDiscarded(t *testing.T) {
	f := newFixture(t,
		[]domain.Trader{trader("0xa", 10, nil), trader("0xb", 10, nil)},
		[]domain.PositionChange{
			change("0xa", "m1", "Some market?", "YES", domain.ChangeOpen, 1.0, time.Hour),
			change("0xb", "m1", "Some market?", "NO", domain.ChangeClose, 1.0, time.Hour),
		},
	)

	stats, err := f.det.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Contested)
	assert.Equal(t, 0, stats.Created)

	_, err = f.signals.GetOpen(context.Background(), "m1", "YES")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunMixedExpansionContractionDiscarded(t *testing.T) {
	f := newFixture(t,
		[]domain.Trader{trader("0xa", 10, nil), trader("0xb", 10, nil)},
		[]domain.PositionChange{
			change("0xa", "m1", "Some market?", "YES", domain.ChangeIncrease, 1.0, time.Hour),
			change("0xb", "m1", "Some market?", "YES", domain.ChangeDecrease, 1.0, time.Hour),
		},
	)

	stats, err := f.det.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Contested)
	assert.Equal(t, 0, stats.Created)
}

// Running twice on an unchanged change-set must not duplicate membership or
// inflate the score.
func TestRunIdempotent(t *testing.T) {
	f := newFixture(t,
		[]domain.Trader{trader("0xa", 10, nil), trader("0xb", 8, nil)},
		[]domain.PositionChange{
			change("0xa", "m1", "Some market?", "YES", domain.ChangeOpen, 1.0, time.Hour),
			change("0xb", "m1", "Some market?", "YES", domain.ChangeOpen, 1.0, time.Hour),
		},
	)

	_, err := f.det.Run(context.Background())
	require.NoError(t, err)
	first, err := f.signals.GetOpen(context.Background(), "m1", "YES")
	require.NoError(t, err)

	stats, err := f.det.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Created)
	assert.Equal(t, 1, stats.Updated)

	second, err := f.signals.GetOpen(context.Background(), "m1", "YES")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Score, second.Score)
	assert.Len(t, second.Contributions, 2)
}

func TestRunSoloTopTraderTier3(t *testing.T) {
	// 0xa is top-ranked; conviction above the solo bar.
	f := newFixture(t,
		[]domain.Trader{trader("0xa", 20, nil), trader("0xb", 1, nil)},
		[]domain.PositionChange{
			change("0xa", "m1", "Some market?", "YES", domain.ChangeOpen, 2.5, time.Hour),
		},
	)

	stats, err := f.det.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Created)

	sig, err := f.signals.GetOpen(context.Background(), "m1", "YES")
	require.NoError(t, err)
	assert.Equal(t, 3, sig.Tier)
}

func TestRunSoloLowConvictionNoSignal(t *testing.T) {
	f := newFixture(t,
		[]domain.Trader{trader("0xa", 20, nil)},
		[]domain.PositionChange{
			change("0xa", "m1", "Some market?", "YES", domain.ChangeOpen, 1.5, time.Hour),
		},
	)

	stats, err := f.det.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Created)
}

func TestRunSoloNonTopTraderNoSignal(t *testing.T) {
	// Eleven higher-scored traders push 0xlow out of the top 10.
	traders := []domain.Trader{trader("0xlow", 1, nil)}
	for i := 0; i < 11; i++ {
		traders = append(traders, trader(fmt.Sprintf("0xtop%d", i), float64(100+i), nil))
	}
	f := newFixture(t, traders,
		[]domain.PositionChange{
			change("0xlow", "m1", "Some market?", "YES", domain.ChangeOpen, 3.0, time.Hour),
		},
	)

	stats, err := f.det.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Created)
}

func TestRunBelowMediumThresholdNoSignal(t *testing.T) {
	f := newFixture(t,
		[]domain.Trader{trader("0xa", 1, nil), trader("0xb", 1, nil)},
		[]domain.PositionChange{
			// weight = 1 × 1.0 × 1.0 × 2.0 = 2 each, total 4 < 8.
			change("0xa", "m1", "Some market?", "YES", domain.ChangeOpen, 1.0, time.Hour),
			change("0xb", "m1", "Some market?", "YES", domain.ChangeOpen, 1.0, time.Hour),
		},
	)

	stats, err := f.det.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Created)
	assert.Equal(t, 0, stats.Updated)
}

func TestRunRepeatContributionReplaces(t *testing.T) {
	f := newFixture(t,
		[]domain.Trader{trader("0xa", 10, nil), trader("0xb", 8, nil)},
		[]domain.PositionChange{
			change("0xa", "m1", "Some market?", "YES", domain.ChangeOpen, 1.0, 3*time.Hour),
			change("0xb", "m1", "Some market?", "YES", domain.ChangeOpen, 1.0, 3*time.Hour),
		},
	)

	_, err := f.det.Run(context.Background())
	require.NoError(t, err)

	// 0xa adds to the same position later; the fresher change supersedes.
	require.NoError(t, f.changes.InsertBatch(context.Background(), []domain.PositionChange{
		change("0xa", "m1", "Some market?", "YES", domain.ChangeIncrease, 2.0, 30*time.Minute),
	}))

	_, err = f.det.Run(context.Background())
	require.NoError(t, err)

	sig, err := f.signals.GetOpen(context.Background(), "m1", "YES")
	require.NoError(t, err)
	require.Len(t, sig.Contributions, 2)

	var a domain.Contribution
	for _, c := range sig.Contributions {
		if c.Wallet == "0xa" {
			a = c
		}
	}
	assert.Equal(t, domain.ChangeIncrease, a.Kind)
	assert.Equal(t, 2.0, a.Conviction)
	assert.Equal(t, 2.0, a.Freshness)
}

func TestRunPeakScoreRetainedWhenEvidenceAges(t *testing.T) {
	f := newFixture(t,
		[]domain.Trader{trader("0xa", 10, nil), trader("0xb", 8, nil), trader("0xc", 6, nil)},
		[]domain.PositionChange{
			change("0xa", "m1", "Some market?", "YES", domain.ChangeOpen, 1.0, time.Hour),
			change("0xb", "m1", "Some market?", "YES", domain.ChangeOpen, 1.0, time.Hour),
			change("0xc", "m1", "Some market?", "YES", domain.ChangeOpen, 1.0, time.Hour),
		},
	)

	_, err := f.det.Run(context.Background())
	require.NoError(t, err)
	first, _ := f.signals.GetOpen(context.Background(), "m1", "YES")

	// Eight hours later the same evidence is worth half as much, but the
	// peak remembers the strongest reading.
	f.det.now = func() time.Time { return passTime.Add(8 * time.Hour) }
	_, err = f.det.Run(context.Background())
	require.NoError(t, err)

	sig, err := f.signals.GetOpen(context.Background(), "m1", "YES")
	require.NoError(t, err)
	assert.Less(t, sig.Score, first.Score)
	assert.Equal(t, first.PeakScore, sig.PeakScore)
}

func TestRunSkipsLockedSignal(t *testing.T) {
	f := newFixture(t,
		[]domain.Trader{trader("0xa", 10, nil), trader("0xb", 8, nil)},
		[]domain.PositionChange{
			change("0xa", "m1", "Some market?", "YES", domain.ChangeOpen, 1.0, time.Hour),
			change("0xb", "m1", "Some market?", "YES", domain.ChangeOpen, 1.0, time.Hour),
		},
	)
	f.locks.Held["signal:m1:YES"] = true

	stats, err := f.det.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Created)
}

func TestRunUnknownTraderSkipped(t *testing.T) {
	// 0xghost has no trader row; the other two still form a signal.
	f := newFixture(t,
		[]domain.Trader{trader("0xa", 10, nil), trader("0xb", 8, nil)},
		[]domain.PositionChange{
			change("0xa", "m1", "Some market?", "YES", domain.ChangeOpen, 1.0, time.Hour),
			change("0xb", "m1", "Some market?", "YES", domain.ChangeOpen, 1.0, time.Hour),
			change("0xghost", "m1", "Some market?", "YES", domain.ChangeOpen, 1.0, time.Hour),
		},
	)

	stats, err := f.det.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Created)

	sig, _ := f.signals.GetOpen(context.Background(), "m1", "YES")
	assert.Len(t, sig.Contributions, 2)
}

func TestFreshnessSteps(t *testing.T) {
	assert.Equal(t, 2.0, Freshness(time.Hour))
	assert.Equal(t, 1.5, Freshness(3*time.Hour))
	assert.Equal(t, 1.0, Freshness(12*time.Hour))
	assert.Equal(t, 0.5, Freshness(36*time.Hour))
	assert.Equal(t, 0.0, Freshness(72*time.Hour))
}

func TestCategoryMatchBonus(t *testing.T) {
	title := "Bitcoin above $100k by March?"
	f := newFixture(t,
		[]domain.Trader{
			trader("0xa", 10, map[string]float64{"CRYPTO": 0.8}),
			trader("0xb", 10, nil),
		},
		[]domain.PositionChange{
			change("0xa", "m1", title, "YES", domain.ChangeOpen, 1.0, time.Hour),
			change("0xb", "m1", title, "YES", domain.ChangeOpen, 1.0, time.Hour),
		},
	)

	_, err := f.det.Run(context.Background())
	require.NoError(t, err)

	sig, err := f.signals.GetOpen(context.Background(), "m1", "YES")
	require.NoError(t, err)

	byWallet := map[string]domain.Contribution{}
	for _, c := range sig.Contributions {
		byWallet[c.Wallet] = c
	}
	assert.Equal(t, 1.5, byWallet["0xa"].CategoryMatch)
	assert.Equal(t, 1.0, byWallet["0xb"].CategoryMatch)
}
