package lifecycle

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyradar/internal/domain"
	"github.com/alanyoungcy/polyradar/internal/domain/domaintest"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const window = 24 * time.Hour

func signal(id string, status domain.SignalStatus, score, peak float64, lastEvidence time.Time) domain.Signal {
	return domain.Signal{
		ID:          id,
		ConditionID: "m-" + id,
		Direction:   "YES",
		Status:      status,
		Score:       score,
		PeakScore:   peak,
		CreatedAt:   lastEvidence,
		Contributions: []domain.Contribution{
			{Wallet: "0xa", DetectedAt: lastEvidence},
		},
	}
}

func run(t *testing.T, signals ...domain.Signal) (*domaintest.SignalStore, Stats) {
	t.Helper()
	store := domaintest.NewSignalStore(signals...)
	m := New(store, window, slog.New(slog.DiscardHandler))
	m.now = func() time.Time { return now }
	stats, err := m.Run(context.Background())
	require.NoError(t, err)
	return store, stats
}

func TestActiveWithFreshEvidenceStaysActive(t *testing.T) {
	store, stats := run(t, signal("s1", domain.SignalActive, 50, 50, now.Add(-time.Hour)))
	assert.Equal(t, Stats{Evaluated: 1}, stats)

	sig, _ := store.GetByID(context.Background(), "s1")
	assert.Equal(t, domain.SignalActive, sig.Status)
}

func TestActiveWeakensAfterQuietGrace(t *testing.T) {
	// Quiet past half the window, score well below peak.
	store, stats := run(t, signal("s1", domain.SignalActive, 20, 50, now.Add(-13*time.Hour)))
	assert.Equal(t, 1, stats.Weakened)

	sig, _ := store.GetByID(context.Background(), "s1")
	assert.Equal(t, domain.SignalWeakening, sig.Status)
}

func TestActiveAtPeakDoesNotWeaken(t *testing.T) {
	// Quiet, but the score never dropped; there is nothing to weaken.
	store, stats := run(t, signal("s1", domain.SignalActive, 50, 50, now.Add(-13*time.Hour)))
	assert.Equal(t, 0, stats.Weakened)

	sig, _ := store.GetByID(context.Background(), "s1")
	assert.Equal(t, domain.SignalActive, sig.Status)
}

func TestWeakeningReactivatesOnFreshEvidence(t *testing.T) {
	store, stats := run(t, signal("s1", domain.SignalWeakening, 40, 50, now.Add(-time.Hour)))
	assert.Equal(t, 1, stats.Reactivated)

	sig, _ := store.GetByID(context.Background(), "s1")
	assert.Equal(t, domain.SignalActive, sig.Status)
}

func TestClosesAfterFullWindowQuiet(t *testing.T) {
	store, stats := run(t,
		signal("s1", domain.SignalActive, 20, 50, now.Add(-25*time.Hour)),
		signal("s2", domain.SignalWeakening, 20, 50, now.Add(-30*time.Hour)),
	)
	assert.Equal(t, 2, stats.Closed)

	for _, id := range []string{"s1", "s2"} {
		sig, _ := store.GetByID(context.Background(), id)
		assert.Equal(t, domain.SignalClosed, sig.Status)
	}
}

func TestTerminalSignalsNotEvaluated(t *testing.T) {
	resolved := signal("s1", domain.SignalResolved, 20, 50, now.Add(-48*time.Hour))
	closed := signal("s2", domain.SignalClosed, 20, 50, now.Add(-48*time.Hour))

	store, stats := run(t, resolved, closed)
	assert.Equal(t, 0, stats.Evaluated)

	s1, _ := store.GetByID(context.Background(), "s1")
	assert.Equal(t, domain.SignalResolved, s1.Status)
	s2, _ := store.GetByID(context.Background(), "s2")
	assert.Equal(t, domain.SignalClosed, s2.Status)
}

func TestContributionlessSignalAgesFromCreation(t *testing.T) {
	sig := domain.Signal{
		ID:          "s1",
		ConditionID: "m-s1",
		Direction:   "YES",
		Status:      domain.SignalActive,
		CreatedAt:   now.Add(-25 * time.Hour),
	}
	store, stats := run(t, sig)
	assert.Equal(t, 1, stats.Closed)

	got, _ := store.GetByID(context.Background(), "s1")
	assert.Equal(t, domain.SignalClosed, got.Status)
}

func TestStatusOnlyWrites(t *testing.T) {
	// The manager must never touch score, peak or membership.
	orig := signal("s1", domain.SignalActive, 20, 50, now.Add(-13*time.Hour))
	store, _ := run(t, orig)

	got, _ := store.GetByID(context.Background(), "s1")
	assert.Equal(t, orig.Score, got.Score)
	assert.Equal(t, orig.PeakScore, got.PeakScore)
	assert.Equal(t, orig.Contributions, got.Contributions)
}
