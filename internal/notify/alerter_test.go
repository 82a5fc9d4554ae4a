package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyradar/internal/domain"
	"github.com/alanyoungcy/polyradar/internal/domain/domaintest"
)

type recordingSender struct {
	mu     sync.Mutex
	titles []string
	err    error
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.titles = append(r.titles, title)
	return nil
}

func (r *recordingSender) Name() string { return "recording" }

func newAlerter(store *domaintest.SignalStore, sender Sender) *Alerter {
	log := slog.New(slog.DiscardHandler)
	notifier := NewNotifier([]Sender{sender}, nil, log)
	return NewAlerter(store, notifier, DefaultAlertFilter(), log)
}

func sig(id string, tier int, entry float64, category string, status domain.SignalStatus) domain.Signal {
	return domain.Signal{
		ID: id, ConditionID: "m-" + id, MarketTitle: "Market " + id + "?",
		Direction: "YES", Tier: tier, EntryPrice: entry,
		Category: category, Status: status, Score: 20,
	}
}

func TestRunAlertsQualifyingSignal(t *testing.T) {
	store := domaintest.NewSignalStore(sig("s1", 1, 0.40, "POLITICS", domain.SignalActive))
	sender := &recordingSender{}

	require.NoError(t, newAlerter(store, sender).Run(context.Background()))
	require.Len(t, sender.titles, 1)
	assert.Contains(t, sender.titles[0], "Tier 1")

	got, _ := store.GetByID(context.Background(), "s1")
	assert.True(t, got.Alerted)
}

func TestRunFilteredSignalMarkedWithoutAlert(t *testing.T) {
	store := domaintest.NewSignalStore(
		sig("tier3", 3, 0.40, "POLITICS", domain.SignalActive),
		sig("cheap", 1, 0.05, "POLITICS", domain.SignalActive),
		sig("crypto", 1, 0.40, "CRYPTO", domain.SignalActive),
	)
	sender := &recordingSender{}

	require.NoError(t, newAlerter(store, sender).Run(context.Background()))
	assert.Empty(t, sender.titles)

	// Filtered signals are consumed, not retried forever.
	for _, id := range []string{"tier3", "cheap", "crypto"} {
		got, _ := store.GetByID(context.Background(), id)
		assert.True(t, got.Alerted, id)
	}
}

func TestRunDeliveryFailureRetriesNextPass(t *testing.T) {
	store := domaintest.NewSignalStore(sig("s1", 1, 0.40, "POLITICS", domain.SignalActive))
	sender := &recordingSender{err: errors.New("telegram down")}
	a := newAlerter(store, sender)

	require.NoError(t, a.Run(context.Background()))
	got, _ := store.GetByID(context.Background(), "s1")
	assert.False(t, got.Alerted)

	// Channel recovers; the same signal goes out on the next pass.
	sender.err = nil
	require.NoError(t, a.Run(context.Background()))
	assert.Len(t, sender.titles, 1)

	got, _ = store.GetByID(context.Background(), "s1")
	assert.True(t, got.Alerted)
}

func TestRunResolutionAlertFollowsAnnouncedSignalsOnly(t *testing.T) {
	pnl := 4.0
	announced := sig("won", 1, 0.20, "POLITICS", domain.SignalResolved)
	announced.Alerted = true
	announced.ResolutionOutcome = "YES"
	announced.PnLPercent = &pnl

	silent := sig("quiet", 3, 0.20, "POLITICS", domain.SignalResolved)
	silent.ResolutionOutcome = "NO"

	store := domaintest.NewSignalStore(announced, silent)
	sender := &recordingSender{}

	require.NoError(t, newAlerter(store, sender).Run(context.Background()))
	require.Len(t, sender.titles, 1)
	assert.Contains(t, sender.titles[0], "RESOLVED")

	for _, id := range []string{"won", "quiet"} {
		got, _ := store.GetByID(context.Background(), id)
		assert.True(t, got.ResolutionAlerted, id)
	}
}

func TestAlertFilterBounds(t *testing.T) {
	f := DefaultAlertFilter()

	assert.True(t, f.Pass(sig("a", 2, 0.10, "POLITICS", domain.SignalActive)))
	assert.True(t, f.Pass(sig("b", 1, 0.85, "SPORTS", domain.SignalActive)))
	assert.False(t, f.Pass(sig("c", 3, 0.40, "POLITICS", domain.SignalActive)))
	assert.False(t, f.Pass(sig("d", 1, 0.86, "POLITICS", domain.SignalActive)))
	assert.False(t, f.Pass(sig("e", 1, 0.40, "FINANCE", domain.SignalActive)))
}
