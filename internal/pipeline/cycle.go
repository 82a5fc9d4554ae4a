// Package pipeline orchestrates the radar's recurring work: the scan cycle,
// resolution reconciliation, watchlist rebuilds, and snapshot archival.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyradar/internal/detector"
	"github.com/alanyoungcy/polyradar/internal/domain"
	"github.com/alanyoungcy/polyradar/internal/lifecycle"
	"github.com/alanyoungcy/polyradar/internal/notify"
	"github.com/alanyoungcy/polyradar/internal/scanner"
)

// scanLockKey guards the scan cycle so at most one instance runs it at a time.
const scanLockKey = "cycle:scan"

// ScanCycle runs one scan → detect → lifecycle → alert pass. A stage failure
// is logged and the remaining stages still run: detection can make progress
// on previously stored changes even when this cycle's scan failed.
type ScanCycle struct {
	scanner   *scanner.Scanner
	detector  *detector.Detector
	lifecycle *lifecycle.Manager
	alerter   *notify.Alerter
	locks     domain.LockManager
	audit     domain.AuditStore
	logger    *slog.Logger
}

// NewScanCycle creates a ScanCycle. audit may be nil.
func NewScanCycle(
	sc *scanner.Scanner,
	det *detector.Detector,
	lc *lifecycle.Manager,
	alerter *notify.Alerter,
	locks domain.LockManager,
	audit domain.AuditStore,
	logger *slog.Logger,
) *ScanCycle {
	return &ScanCycle{
		scanner:   sc,
		detector:  det,
		lifecycle: lc,
		alerter:   alerter,
		locks:     locks,
		audit:     audit,
		logger:    logger.With("component", "scan_cycle"),
	}
}

// Run executes one cycle under the single-flight lock. When another instance
// holds the lock the cycle is skipped without error.
func (c *ScanCycle) Run(ctx context.Context, lockTTL time.Duration) error {
	unlock, err := c.locks.Acquire(ctx, scanLockKey, lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			c.logger.Info("scan cycle already running elsewhere, skipping")
			return nil
		}
		return fmt.Errorf("pipeline: acquire scan lock: %w", err)
	}
	defer unlock()

	started := time.Now()

	scanStats, err := c.scanner.Run(ctx)
	if err != nil {
		c.logger.Error("scan stage failed", slog.String("error", err.Error()))
	}

	detStats, err := c.detector.Run(ctx)
	if err != nil {
		c.logger.Error("detect stage failed", slog.String("error", err.Error()))
	}

	lcStats, err := c.lifecycle.Run(ctx)
	if err != nil {
		c.logger.Error("lifecycle stage failed", slog.String("error", err.Error()))
	}

	if err := c.alerter.Run(ctx); err != nil {
		c.logger.Error("alert stage failed", slog.String("error", err.Error()))
	}

	c.logger.Info("scan cycle complete",
		slog.Duration("elapsed", time.Since(started)),
		slog.Int64("scanned", scanStats.Scanned),
		slog.Int64("changes", scanStats.Changes),
		slog.Int("signals_created", detStats.Created),
		slog.Int("signals_updated", detStats.Updated),
		slog.Int("signals_closed", lcStats.Closed),
	)

	if c.audit != nil {
		if err := c.audit.Log(ctx, "cycle.scan", map[string]any{
			"scanned":         scanStats.Scanned,
			"failed":          scanStats.Failed,
			"changes":         scanStats.Changes,
			"groups":          detStats.Groups,
			"contested":       detStats.Contested,
			"signals_created": detStats.Created,
			"signals_updated": detStats.Updated,
			"weakened":        lcStats.Weakened,
			"closed":          lcStats.Closed,
			"elapsed_ms":      time.Since(started).Milliseconds(),
		}); err != nil {
			c.logger.Warn("audit log failed", slog.String("error", err.Error()))
		}
	}

	return ctx.Err()
}

// RunLoop runs a cycle immediately and then on every tick until the context
// is cancelled.
func (c *ScanCycle) RunLoop(ctx context.Context, interval time.Duration) error {
	// The lock outlives a crashed holder by one interval at most.
	lockTTL := interval
	if lockTTL < time.Minute {
		lockTTL = time.Minute
	}

	if err := c.Run(ctx, lockTTL); err != nil && ctx.Err() == nil {
		c.logger.Error("scan cycle failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.Run(ctx, lockTTL); err != nil && ctx.Err() == nil {
				c.logger.Error("scan cycle failed", slog.String("error", err.Error()))
			}
		}
	}
}
