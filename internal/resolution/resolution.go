// Package resolution reconciles open signals against market outcomes and
// books their final P&L.
package resolution

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyradar/internal/domain"
)

// MarketResolver reports whether a market has resolved and which outcome won.
type MarketResolver interface {
	Resolution(ctx context.Context, conditionID string) (domain.MarketResolution, error)
}

// Stats summarizes one reconciliation pass.
type Stats struct {
	Checked  int
	Resolved int
	Skipped  int
}

// Reconciler marks signals RESOLVED once their market settles. It owns the
// resolution columns; the operation is idempotent because MarkResolved is
// conditional on the row not already being RESOLVED.
type Reconciler struct {
	signals  domain.SignalStore
	resolver MarketResolver
	bus      domain.SignalBus
	log      *slog.Logger
	now      func() time.Time
}

// New builds a reconciler. bus may be nil.
func New(signals domain.SignalStore, resolver MarketResolver, bus domain.SignalBus, log *slog.Logger) *Reconciler {
	return &Reconciler{
		signals:  signals,
		resolver: resolver,
		bus:      bus,
		log:      log.With("component", "resolution"),
		now:      time.Now,
	}
}

// Run checks every not-yet-resolved signal, CLOSED ones included, against
// the resolution feed. A feed failure for one market skips that market only.
func (r *Reconciler) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	pending, err := r.signals.ListUnresolved(ctx)
	if err != nil {
		return stats, fmt.Errorf("resolution: list unresolved: %w", err)
	}
	stats.Checked = len(pending)

	// Many signals can share a market; resolve each condition once per pass.
	resolutions := map[string]domain.MarketResolution{}

	for _, sig := range pending {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		res, ok := resolutions[sig.ConditionID]
		if !ok {
			res, err = r.resolver.Resolution(ctx, sig.ConditionID)
			if err != nil {
				stats.Skipped++
				r.log.Warn("resolution lookup failed, skipping market",
					"condition_id", sig.ConditionID, "error", err)
				continue
			}
			resolutions[sig.ConditionID] = res
		}
		if !res.Resolved {
			continue
		}

		pnl := PnL(sig.Direction, res.WinningOutcome, sig.EntryPrice)
		at := r.now()
		if err := r.signals.MarkResolved(ctx, sig.ID, res.WinningOutcome, pnl, at); err != nil {
			return stats, fmt.Errorf("resolution: mark resolved %s: %w", sig.ID, err)
		}
		stats.Resolved++
		r.log.Info("signal resolved",
			"signal_id", sig.ID, "condition_id", sig.ConditionID,
			"direction", sig.Direction, "outcome", res.WinningOutcome,
			"pnl_percent", pnl)
		r.publish(ctx, sig, res.WinningOutcome, pnl)
	}
	return stats, nil
}

// PnL is the return on one notional unit entered at entryPrice. A direction
// matching the winning outcome pays (1 − entry) / entry; a miss loses the
// whole unit. An unknown entry price books a flat result rather than
// dividing by zero.
func PnL(direction, winningOutcome string, entryPrice float64) float64 {
	if direction != winningOutcome {
		return -1.0
	}
	if entryPrice <= 0 {
		return 0
	}
	return (1 - entryPrice) / entryPrice
}

func (r *Reconciler) publish(ctx context.Context, sig domain.Signal, outcome string, pnl float64) {
	if r.bus == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"id":           sig.ID,
		"condition_id": sig.ConditionID,
		"direction":    sig.Direction,
		"outcome":      outcome,
		"pnl_percent":  pnl,
	})
	if err != nil {
		return
	}
	if err := r.bus.Publish(ctx, "signals:resolved", payload); err != nil {
		r.log.Warn("resolution publish failed", "error", err)
	}
}
