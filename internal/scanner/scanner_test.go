package scanner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyradar/internal/domain"
	"github.com/alanyoungcy/polyradar/internal/domain/domaintest"
)

var scanTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type stubFeed struct {
	mu        sync.Mutex
	positions map[string][]domain.Position
	errs      map[string]error
	calls     int
}

func (f *stubFeed) GetPositions(_ context.Context, wallet string) ([]domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[wallet]; err != nil {
		return nil, err
	}
	return f.positions[wallet], nil
}

func position(cid, outcome string, size float64) domain.Position {
	return domain.Position{ConditionID: cid, Outcome: outcome, Size: size, CurPrice: 0.5}
}

func newScanner(feed *stubFeed, traders *domaintest.TraderStore, snaps *domaintest.SnapshotStore, changes *domaintest.ChangeStore) *Scanner {
	s := New(feed, traders, snaps, changes, 4, slog.New(slog.DiscardHandler))
	s.now = func() time.Time { return scanTime }
	return s
}

func TestRunBaselineScanEmitsNoChanges(t *testing.T) {
	feed := &stubFeed{positions: map[string][]domain.Position{
		"0xa": {position("m1", "YES", 100)},
	}}
	traders := domaintest.NewTraderStore(domain.Trader{Wallet: "0xa"})
	snaps := domaintest.NewSnapshotStore()
	changes := domaintest.NewChangeStore()

	stats, err := newScanner(feed, traders, snaps, changes).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Scanned)
	assert.Equal(t, int64(1), stats.Bootstrapped)
	assert.Equal(t, int64(0), stats.Changes)

	snap, err := snaps.GetLatest(context.Background(), "0xa")
	require.NoError(t, err)
	assert.Len(t, snap.Positions, 1)
	assert.Empty(t, changes.Changes)
}

func TestRunDiffsAgainstLatestSnapshot(t *testing.T) {
	feed := &stubFeed{positions: map[string][]domain.Position{
		"0xa": {position("m1", "YES", 150), position("m2", "NO", 10)},
	}}
	traders := domaintest.NewTraderStore(domain.Trader{Wallet: "0xa", AvgPositionSize: 50})
	snaps := domaintest.NewSnapshotStore(domain.PositionSnapshot{
		Wallet:    "0xa",
		Positions: []domain.Position{position("m1", "YES", 100)},
		ScannedAt: scanTime.Add(-5 * time.Minute),
	})
	changes := domaintest.NewChangeStore()

	stats, err := newScanner(feed, traders, snaps, changes).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Changes)

	got, err := changes.ListSince(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, c := range got {
		assert.Equal(t, "0xa", c.Wallet)
		assert.Equal(t, scanTime, c.DetectedAt)
	}

	// The new snapshot becomes the diff base for the next pass.
	snap, err := snaps.GetLatest(context.Background(), "0xa")
	require.NoError(t, err)
	assert.Len(t, snap.Positions, 2)
}

func TestRunOneWalletFailureDoesNotAbort(t *testing.T) {
	feed := &stubFeed{
		positions: map[string][]domain.Position{
			"0xa": {position("m1", "YES", 100)},
			"0xb": {position("m1", "YES", 50)},
		},
		errs: map[string]error{"0xb": errors.New("upstream 503")},
	}
	traders := domaintest.NewTraderStore(
		domain.Trader{Wallet: "0xa"},
		domain.Trader{Wallet: "0xb"},
	)
	snaps := domaintest.NewSnapshotStore()
	changes := domaintest.NewChangeStore()

	stats, err := newScanner(feed, traders, snaps, changes).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Scanned)
	assert.Equal(t, int64(1), stats.Failed)

	_, err = snaps.GetLatest(context.Background(), "0xa")
	assert.NoError(t, err)
	_, err = snaps.GetLatest(context.Background(), "0xb")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunUnchangedPositionsWriteSnapshotOnly(t *testing.T) {
	feed := &stubFeed{positions: map[string][]domain.Position{
		"0xa": {position("m1", "YES", 100)},
	}}
	traders := domaintest.NewTraderStore(domain.Trader{Wallet: "0xa"})
	snaps := domaintest.NewSnapshotStore(domain.PositionSnapshot{
		Wallet:    "0xa",
		Positions: []domain.Position{position("m1", "YES", 100)},
		ScannedAt: scanTime.Add(-5 * time.Minute),
	})
	changes := domaintest.NewChangeStore()

	stats, err := newScanner(feed, traders, snaps, changes).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Changes)
	assert.Len(t, snaps.Snapshots, 2)
	assert.Empty(t, changes.Changes)
}

func TestRunCancelledContext(t *testing.T) {
	feed := &stubFeed{}
	traders := domaintest.NewTraderStore(domain.Trader{Wallet: "0xa"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newScanner(feed, traders, domaintest.NewSnapshotStore(), domaintest.NewChangeStore()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
