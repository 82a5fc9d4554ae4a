package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyradar/internal/detector"
	"github.com/alanyoungcy/polyradar/internal/domain"
	"github.com/alanyoungcy/polyradar/internal/domain/domaintest"
	"github.com/alanyoungcy/polyradar/internal/lifecycle"
	"github.com/alanyoungcy/polyradar/internal/notify"
	"github.com/alanyoungcy/polyradar/internal/scanner"
)

type stubFeed struct {
	mu    sync.Mutex
	calls int
}

func (f *stubFeed) GetPositions(_ context.Context, _ string) ([]domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil, nil
}

type auditRecorder struct {
	mu     sync.Mutex
	events []string
	detail map[string]any
}

func (a *auditRecorder) Log(_ context.Context, event string, detail map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	a.detail = detail
	return nil
}

func (a *auditRecorder) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func newCycle(feed *stubFeed, locks domain.LockManager, audit domain.AuditStore) *ScanCycle {
	log := slog.New(slog.DiscardHandler)
	traders := domaintest.NewTraderStore(domain.Trader{
		Wallet: "0xabc",
		Type:   domain.TraderTypeHuman,
		Score:  80,
	})
	signals := domaintest.NewSignalStore()
	changes := domaintest.NewChangeStore()

	sc := scanner.New(feed, traders, domaintest.NewSnapshotStore(), changes, 2, log)
	det := detector.New(traders, signals, changes, nil, locks, domaintest.NewSignalBus(), 24*time.Hour, log)
	lc := lifecycle.New(signals, 24*time.Hour, log)
	alerter := notify.NewAlerter(signals, notify.NewNotifier(nil, nil, log), notify.AlertFilter{MaxTier: 3, MaxEntryPrice: 1}, log)

	return NewScanCycle(sc, det, lc, alerter, locks, audit, log)
}

func TestRunSkipsWhenLockHeld(t *testing.T) {
	locks := domaintest.NewLockManager()
	locks.Held["cycle:scan"] = true
	feed := &stubFeed{}
	audit := &auditRecorder{}

	err := newCycle(feed, locks, audit).Run(context.Background(), time.Minute)
	require.NoError(t, err)

	assert.Zero(t, feed.calls, "no stage should run without the lock")
	assert.Empty(t, audit.events)
}

func TestRunExecutesStagesAndReleasesLock(t *testing.T) {
	locks := domaintest.NewLockManager()
	feed := &stubFeed{}
	audit := &auditRecorder{}
	cycle := newCycle(feed, locks, audit)

	require.NoError(t, cycle.Run(context.Background(), time.Minute))
	assert.Equal(t, 1, feed.calls)
	assert.Equal(t, []string{"cycle.scan"}, audit.events)
	assert.Equal(t, int64(1), audit.detail["scanned"])

	// The lock was released, so a second run goes through.
	require.NoError(t, cycle.Run(context.Background(), time.Minute))
	assert.Equal(t, 2, feed.calls)
}

func TestRunWithoutAuditStore(t *testing.T) {
	locks := domaintest.NewLockManager()
	cycle := newCycle(&stubFeed{}, locks, nil)

	require.NoError(t, cycle.Run(context.Background(), time.Minute))
}
