package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/polyradar/internal/domain"
)

// Alert event types.
const (
	EventSignalNew      = "signal.new"
	EventSignalResolved = "signal.resolved"
)

// AlertFilter decides which signals are worth an operator's attention. The
// defaults keep only tier 1-2 signals at tradeable prices, outside the
// categories where convergence has historically been noise.
type AlertFilter struct {
	MaxTier            int
	MinEntryPrice      float64
	MaxEntryPrice      float64
	ExcludedCategories []string
}

// DefaultAlertFilter returns the stock filter.
func DefaultAlertFilter() AlertFilter {
	return AlertFilter{
		MaxTier:            2,
		MinEntryPrice:      0.10,
		MaxEntryPrice:      0.85,
		ExcludedCategories: []string{"CRYPTO", "CULTURE", "FINANCE"},
	}
}

// Pass reports whether the signal clears the filter.
func (f AlertFilter) Pass(sig domain.Signal) bool {
	if sig.Tier > f.MaxTier {
		return false
	}
	if sig.EntryPrice < f.MinEntryPrice || sig.EntryPrice > f.MaxEntryPrice {
		return false
	}
	for _, cat := range f.ExcludedCategories {
		if strings.EqualFold(sig.Category, cat) {
			return false
		}
	}
	return true
}

// Alerter turns pending signals into operator notifications. Every pending
// signal is marked handled whether or not it clears the filter, so a filtered
// signal is considered once and never re-examined.
type Alerter struct {
	signals  domain.SignalStore
	notifier *Notifier
	filter   AlertFilter
	log      *slog.Logger
}

// NewAlerter creates an Alerter delivering through the given notifier.
func NewAlerter(signals domain.SignalStore, notifier *Notifier, filter AlertFilter, log *slog.Logger) *Alerter {
	return &Alerter{
		signals:  signals,
		notifier: notifier,
		filter:   filter,
		log:      log.With("component", "alerter"),
	}
}

// Run delivers pending creation and resolution alerts. Delivery failures
// leave the pending flag set so the next pass retries.
func (a *Alerter) Run(ctx context.Context) error {
	if err := a.alertNew(ctx); err != nil {
		return err
	}
	return a.alertResolutions(ctx)
}

func (a *Alerter) alertNew(ctx context.Context) error {
	pending, err := a.signals.ListUnalerted(ctx)
	if err != nil {
		return fmt.Errorf("alerter: list unalerted: %w", err)
	}

	for _, sig := range pending {
		if a.filter.Pass(sig) {
			title, message := formatNewSignal(sig)
			if err := a.notifier.Notify(ctx, EventSignalNew, title, message); err != nil {
				a.log.Warn("signal alert delivery failed", "signal_id", sig.ID, "error", err)
				continue
			}
		}
		if err := a.signals.MarkAlerted(ctx, sig.ID); err != nil {
			return fmt.Errorf("alerter: mark alerted %s: %w", sig.ID, err)
		}
	}
	return nil
}

func (a *Alerter) alertResolutions(ctx context.Context) error {
	pending, err := a.signals.ListUnalertedResolutions(ctx)
	if err != nil {
		return fmt.Errorf("alerter: list unalerted resolutions: %w", err)
	}

	for _, sig := range pending {
		// Resolution alerts only follow up on signals that were announced.
		if sig.Alerted && a.filter.Pass(sig) {
			title, message := formatResolution(sig)
			if err := a.notifier.Notify(ctx, EventSignalResolved, title, message); err != nil {
				a.log.Warn("resolution alert delivery failed", "signal_id", sig.ID, "error", err)
				continue
			}
		}
		if err := a.signals.MarkResolutionAlerted(ctx, sig.ID); err != nil {
			return fmt.Errorf("alerter: mark resolution alerted %s: %w", sig.ID, err)
		}
	}
	return nil
}

func formatNewSignal(sig domain.Signal) (title, message string) {
	title = fmt.Sprintf("🎯 NEW SIGNAL — Tier %d %s", sig.Tier, sig.Direction)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", sig.MarketTitle)
	fmt.Fprintf(&b, "Score: %.1f | Participants: %d | Entry: %.2f\n",
		sig.Score, len(sig.Contributions), sig.EntryPrice)
	fmt.Fprintf(&b, "Category: %s\n", sig.Category)
	for _, c := range sig.Contributions {
		name := c.Username
		if name == "" {
			name = shortWallet(c.Wallet)
		}
		fmt.Fprintf(&b, "  • %s (%s) %s, conviction %.1fx\n",
			name, c.TraderType, c.Kind, c.Conviction)
	}
	return title, b.String()
}

func formatResolution(sig domain.Signal) (title, message string) {
	pnl := 0.0
	if sig.PnLPercent != nil {
		pnl = *sig.PnLPercent
	}
	emoji := "✅"
	if pnl < 0 {
		emoji = "❌"
	}
	title = fmt.Sprintf("%s RESOLVED — %s", emoji, sig.ResolutionOutcome)
	message = fmt.Sprintf("%s\nSignal: %s @ %.2f → P&L %+.0f%%",
		sig.MarketTitle, sig.Direction, sig.EntryPrice, pnl*100)
	return title, message
}

func shortWallet(wallet string) string {
	if len(wallet) <= 10 {
		return wallet
	}
	return wallet[:6] + "…" + wallet[len(wallet)-4:]
}
