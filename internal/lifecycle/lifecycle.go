// Package lifecycle ages open signals through ACTIVE, WEAKENING and CLOSED.
// It owns the status column only: score, membership and resolution are
// written by other components, which keeps concurrent passes from losing
// updates to each other.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyradar/internal/domain"
)

// weakenBelowPeak is the fraction of peak score under which a quiet signal
// is considered to have measurably faded.
const weakenBelowPeak = 0.9

// Stats summarizes one lifecycle evaluation pass.
type Stats struct {
	Evaluated   int
	Weakened    int
	Reactivated int
	Closed      int
}

// Manager evaluates status transitions for all open signals once per cycle.
type Manager struct {
	signals domain.SignalStore
	window  time.Duration // no evidence for this long closes the signal
	grace   time.Duration // no evidence for this long starts weakening
	log     *slog.Logger
	now     func() time.Time
}

// New builds a manager. The grace period is half the signal window, the
// close timeout the full window.
func New(signals domain.SignalStore, window time.Duration, log *slog.Logger) *Manager {
	return &Manager{
		signals: signals,
		window:  window,
		grace:   window / 2,
		log:     log.With("component", "lifecycle"),
		now:     time.Now,
	}
}

// Run evaluates every non-terminal signal once. Transitions:
//
//	ACTIVE → WEAKENING  when no evidence arrived for the grace period and the
//	                    score has fallen measurably below its peak
//	WEAKENING → ACTIVE  when fresh evidence exists again
//	any open → CLOSED   when no evidence arrived for the full window
func (m *Manager) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	open, err := m.signals.ListOpen(ctx)
	if err != nil {
		return stats, fmt.Errorf("lifecycle: list open signals: %w", err)
	}
	stats.Evaluated = len(open)

	now := m.now()
	for _, sig := range open {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		next, ok := m.transition(sig, now)
		if !ok {
			continue
		}
		if err := m.signals.UpdateStatus(ctx, sig.ID, next); err != nil {
			return stats, fmt.Errorf("lifecycle: %s -> %s for %s: %w", sig.Status, next, sig.ID, err)
		}
		m.log.Info("signal status changed",
			"signal_id", sig.ID, "condition_id", sig.ConditionID,
			"from", sig.Status, "to", next)

		switch next {
		case domain.SignalWeakening:
			stats.Weakened++
		case domain.SignalActive:
			stats.Reactivated++
		case domain.SignalClosed:
			stats.Closed++
		}
	}
	return stats, nil
}

// transition computes the next status for one signal, or ok=false when it
// stays put. A signal with no contributions at all ages from its creation
// time.
func (m *Manager) transition(sig domain.Signal, now time.Time) (domain.SignalStatus, bool) {
	last := sig.LastEvidenceAt()
	if last.IsZero() {
		last = sig.CreatedAt
	}
	quiet := now.Sub(last)

	if quiet >= m.window {
		return domain.SignalClosed, true
	}

	switch sig.Status {
	case domain.SignalActive:
		if quiet >= m.grace && sig.Score < sig.PeakScore*weakenBelowPeak {
			return domain.SignalWeakening, true
		}
	case domain.SignalWeakening:
		if quiet < m.grace {
			return domain.SignalActive, true
		}
	}
	return "", false
}
