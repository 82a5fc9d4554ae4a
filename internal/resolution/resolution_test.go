package resolution

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyradar/internal/domain"
	"github.com/alanyoungcy/polyradar/internal/domain/domaintest"
)

type stubResolver struct {
	resolutions map[string]domain.MarketResolution
	errs        map[string]error
	calls       int
}

func (s *stubResolver) Resolution(_ context.Context, conditionID string) (domain.MarketResolution, error) {
	s.calls++
	if err := s.errs[conditionID]; err != nil {
		return domain.MarketResolution{}, err
	}
	return s.resolutions[conditionID], nil
}

func newReconciler(store *domaintest.SignalStore, resolver *stubResolver) *Reconciler {
	return New(store, resolver, nil, slog.New(slog.DiscardHandler))
}

func signal(id, cid, direction string, status domain.SignalStatus, entry float64) domain.Signal {
	return domain.Signal{
		ID: id, ConditionID: cid, Direction: direction,
		Status: status, EntryPrice: entry,
	}
}

func TestRunResolvesMatchingDirection(t *testing.T) {
	store := domaintest.NewSignalStore(
		signal("s1", "m1", "YES", domain.SignalActive, 0.20),
	)
	resolver := &stubResolver{resolutions: map[string]domain.MarketResolution{
		"m1": {ConditionID: "m1", Resolved: true, WinningOutcome: "YES"},
	}}

	stats, err := newReconciler(store, resolver).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Resolved)

	sig, _ := store.GetByID(context.Background(), "s1")
	assert.Equal(t, domain.SignalResolved, sig.Status)
	assert.Equal(t, "YES", sig.ResolutionOutcome)
	require.NotNil(t, sig.PnLPercent)
	assert.InDelta(t, 4.0, *sig.PnLPercent, 1e-9)
	assert.NotNil(t, sig.ResolvedAt)
}

func TestRunResolvesMissAsTotalLoss(t *testing.T) {
	store := domaintest.NewSignalStore(
		signal("s1", "m1", "YES", domain.SignalClosed, 0.20),
	)
	resolver := &stubResolver{resolutions: map[string]domain.MarketResolution{
		"m1": {ConditionID: "m1", Resolved: true, WinningOutcome: "NO"},
	}}

	stats, err := newReconciler(store, resolver).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Resolved)

	sig, _ := store.GetByID(context.Background(), "s1")
	assert.Equal(t, domain.SignalResolved, sig.Status)
	require.NotNil(t, sig.PnLPercent)
	assert.Equal(t, -1.0, *sig.PnLPercent)
}

func TestRunUnresolvedMarketLeftAlone(t *testing.T) {
	store := domaintest.NewSignalStore(
		signal("s1", "m1", "YES", domain.SignalActive, 0.50),
	)
	resolver := &stubResolver{resolutions: map[string]domain.MarketResolution{
		"m1": {ConditionID: "m1", Resolved: false},
	}}

	stats, err := newReconciler(store, resolver).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Resolved)

	sig, _ := store.GetByID(context.Background(), "s1")
	assert.Equal(t, domain.SignalActive, sig.Status)
	assert.Nil(t, sig.PnLPercent)
}

func TestRunIdempotent(t *testing.T) {
	store := domaintest.NewSignalStore(
		signal("s1", "m1", "YES", domain.SignalActive, 0.20),
	)
	resolver := &stubResolver{resolutions: map[string]domain.MarketResolution{
		"m1": {ConditionID: "m1", Resolved: true, WinningOutcome: "YES"},
	}}
	r := newReconciler(store, resolver)

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	first, _ := store.GetByID(context.Background(), "s1")

	// Already-RESOLVED signals are not listed again; nothing changes.
	stats, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Checked)

	second, _ := store.GetByID(context.Background(), "s1")
	assert.Equal(t, first.ResolvedAt, second.ResolvedAt)
	assert.Equal(t, first.PnLPercent, second.PnLPercent)
}

func TestRunFeedFailureSkipsMarketOnly(t *testing.T) {
	store := domaintest.NewSignalStore(
		signal("s1", "m1", "YES", domain.SignalActive, 0.50),
		signal("s2", "m2", "NO", domain.SignalActive, 0.60),
	)
	resolver := &stubResolver{
		resolutions: map[string]domain.MarketResolution{
			"m2": {ConditionID: "m2", Resolved: true, WinningOutcome: "NO"},
		},
		errs: map[string]error{"m1": errors.New("upstream 502")},
	}

	stats, err := newReconciler(store, resolver).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Resolved)

	s2, _ := store.GetByID(context.Background(), "s2")
	assert.Equal(t, domain.SignalResolved, s2.Status)
}

func TestRunResolvesMarketOncePerPass(t *testing.T) {
	// Two signals on the same market, opposite directions.
	store := domaintest.NewSignalStore(
		signal("s1", "m1", "YES", domain.SignalClosed, 0.40),
		signal("s2", "m1", "NO", domain.SignalActive, 0.60),
	)
	resolver := &stubResolver{resolutions: map[string]domain.MarketResolution{
		"m1": {ConditionID: "m1", Resolved: true, WinningOutcome: "NO"},
	}}

	stats, err := newReconciler(store, resolver).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Resolved)
	assert.Equal(t, 1, resolver.calls)

	s2, _ := store.GetByID(context.Background(), "s2")
	require.NotNil(t, s2.PnLPercent)
	assert.InDelta(t, (1-0.60)/0.60, *s2.PnLPercent, 1e-9)
}

func TestPnL(t *testing.T) {
	assert.InDelta(t, 4.0, PnL("YES", "YES", 0.20), 1e-9)
	assert.Equal(t, -1.0, PnL("YES", "NO", 0.20))
	assert.Equal(t, 0.0, PnL("YES", "YES", 0))
}
