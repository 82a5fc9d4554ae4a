// Package scanner walks the tracked population, fetches each trader's
// current positions, diffs them against the last snapshot and persists the
// resulting change facts. It is the producer side of the detection pipeline.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyradar/internal/diff"
	"github.com/alanyoungcy/polyradar/internal/domain"
)

// PositionFeed supplies a wallet's current open positions.
type PositionFeed interface {
	GetPositions(ctx context.Context, wallet string) ([]domain.Position, error)
}

// Stats summarizes one scan pass.
type Stats struct {
	Scanned      int64
	Bootstrapped int64
	Failed       int64
	Changes      int64
}

// Scanner diffs live positions against stored snapshots for every tracked
// trader. Fetches run in parallel up to a bounded concurrency; one wallet's
// failure never aborts the pass for the others.
type Scanner struct {
	feed        PositionFeed
	traders     domain.TraderStore
	snapshots   domain.SnapshotStore
	changes     domain.ChangeStore
	concurrency int
	log         *slog.Logger
	now         func() time.Time
}

// New builds a scanner. concurrency below 1 is clamped to 1.
func New(
	feed PositionFeed,
	traders domain.TraderStore,
	snapshots domain.SnapshotStore,
	changes domain.ChangeStore,
	concurrency int,
	log *slog.Logger,
) *Scanner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scanner{
		feed:        feed,
		traders:     traders,
		snapshots:   snapshots,
		changes:     changes,
		concurrency: concurrency,
		log:         log.With("component", "scanner"),
		now:         time.Now,
	}
}

// Run scans every tracked trader once. The first scan of a wallet records a
// baseline snapshot without emitting changes, so joining the watchlist does
// not flood the change log with synthetic OPENs.
func (s *Scanner) Run(ctx context.Context) (Stats, error) {
	tracked, err := s.traders.List(ctx, domain.TraderFilter{})
	if err != nil {
		return Stats{}, fmt.Errorf("scanner: list traders: %w", err)
	}

	var scanned, bootstrapped, failed, changed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, trader := range tracked {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			n, boot, err := s.scanOne(gctx, trader)
			if err != nil {
				failed.Add(1)
				s.log.Warn("wallet scan failed, skipping this cycle",
					"wallet", trader.Wallet, "error", err)
				return nil
			}
			scanned.Add(1)
			if boot {
				bootstrapped.Add(1)
			}
			changed.Add(int64(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Scanned:      scanned.Load(),
		Bootstrapped: bootstrapped.Load(),
		Failed:       failed.Load(),
		Changes:      changed.Load(),
	}
	s.log.Info("scan pass complete",
		"scanned", stats.Scanned, "bootstrapped", stats.Bootstrapped,
		"failed", stats.Failed, "changes", stats.Changes)
	return stats, nil
}

// scanOne fetches, diffs and persists a single wallet. Returns the number of
// changes written and whether this was the wallet's baseline scan.
func (s *Scanner) scanOne(ctx context.Context, trader domain.Trader) (int, bool, error) {
	positions, err := s.feed.GetPositions(ctx, trader.Wallet)
	if err != nil {
		return 0, false, fmt.Errorf("fetch positions: %w", err)
	}

	current := domain.PositionSnapshot{
		Wallet:    trader.Wallet,
		Positions: positions,
		ScannedAt: s.now(),
	}

	previous, err := s.snapshots.GetLatest(ctx, trader.Wallet)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return 0, false, fmt.Errorf("load previous snapshot: %w", err)
		}
		if err := s.snapshots.Insert(ctx, current); err != nil {
			return 0, false, fmt.Errorf("insert baseline snapshot: %w", err)
		}
		return 0, true, nil
	}

	changes := diff.Diff(previous, current, trader.AvgPositionSize, current.ScannedAt)
	if len(changes) > 0 {
		if err := s.changes.InsertBatch(ctx, changes); err != nil {
			return 0, false, fmt.Errorf("insert changes: %w", err)
		}
	}
	if err := s.snapshots.Insert(ctx, current); err != nil {
		return 0, false, fmt.Errorf("insert snapshot: %w", err)
	}
	return len(changes), false, nil
}
