package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyradar/internal/resolution"
	"github.com/alanyoungcy/polyradar/internal/watchlist"
)

// Intervals configures the cadence of each recurring loop.
type Intervals struct {
	Scan       time.Duration // scan → detect → lifecycle → alert
	Resolution time.Duration // reconcile signals against settled markets
	Watchlist  time.Duration // full watchlist rebuild
}

// Orchestrator manages the radar's long-running loops: the scan cycle, the
// resolution reconciler, the watchlist rebuilder, and the archiver cron.
type Orchestrator struct {
	cycle      *ScanCycle
	reconciler *resolution.Reconciler
	builder    *watchlist.Builder
	archiver   *Archiver
	intervals  Intervals
	logger     *slog.Logger
}

// NewOrchestrator creates an Orchestrator coordinating all recurring loops.
// archiver may be nil when cold storage is not configured.
func NewOrchestrator(
	cycle *ScanCycle,
	reconciler *resolution.Reconciler,
	builder *watchlist.Builder,
	archiver *Archiver,
	intervals Intervals,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		cycle:      cycle,
		reconciler: reconciler,
		builder:    builder,
		archiver:   archiver,
		intervals:  intervals,
		logger:     logger,
	}
}

// Run starts all loops as concurrent goroutines using an errgroup. Each loop
// respects ctx cancellation; if any returns a non-context error, the errgroup
// cancels the shared context and Run returns that error.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("orchestrator starting",
		slog.Duration("scan_interval", o.intervals.Scan),
		slog.Duration("resolution_interval", o.intervals.Resolution),
		slog.Duration("watchlist_interval", o.intervals.Watchlist),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.cycle.RunLoop(ctx, o.intervals.Scan)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("scan cycle loop: %w", err)
	})

	g.Go(func() error {
		err := o.runResolutionLoop(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("resolution loop: %w", err)
	})

	g.Go(func() error {
		err := o.runWatchlistLoop(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("watchlist loop: %w", err)
	})

	if o.archiver != nil {
		g.Go(func() error {
			err := o.archiver.RunCron(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}

	o.logger.Info("orchestrator stopped cleanly")
	return nil
}

// runResolutionLoop reconciles signals against settled markets on its own,
// slower cadence. A failed pass is logged and retried on the next tick.
func (o *Orchestrator) runResolutionLoop(ctx context.Context) error {
	ticker := time.NewTicker(o.intervals.Resolution)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			stats, err := o.reconciler.Run(ctx)
			if err != nil {
				o.logger.Error("resolution pass failed", slog.String("error", err.Error()))
				continue
			}
			if stats.Resolved > 0 {
				o.logger.Info("resolution pass complete",
					slog.Int("checked", stats.Checked),
					slog.Int("resolved", stats.Resolved),
				)
			}
		}
	}
}

// runWatchlistLoop rebuilds the tracked population on a slow cadence. The
// rebuild also runs once at startup so a fresh deployment has traders to
// scan before the first scheduled rebuild.
func (o *Orchestrator) runWatchlistLoop(ctx context.Context) error {
	run := func() {
		stats, err := o.builder.Run(ctx)
		if err != nil {
			o.logger.Error("watchlist rebuild failed", slog.String("error", err.Error()))
			return
		}
		o.logger.Info("watchlist rebuild complete",
			slog.Int("candidates", stats.Candidates),
			slog.Int("scored", stats.Scored),
			slog.Int("excluded", stats.Excluded),
			slog.Int("failed", stats.Failed),
		)
	}

	run()

	ticker := time.NewTicker(o.intervals.Watchlist)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			run()
		}
	}
}
