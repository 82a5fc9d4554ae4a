// Package detector turns accumulated position changes into convergence
// signals. A signal is created or strengthened when multiple tracked traders
// move the same direction in the same market inside the evidence window.
package detector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/polyradar/internal/domain"
	"github.com/alanyoungcy/polyradar/internal/scoring"
)

// Tier thresholds and the solo-signal qualification bar.
const (
	HighThreshold   = 15.0
	MediumThreshold = 8.0
	SoloConviction  = 2.0
	TopTraderRank   = 10
)

// upsertLockTTL bounds how long a per-signal lock can outlive a crashed pass.
const upsertLockTTL = 30 * time.Second

// Stats summarizes one detection pass.
type Stats struct {
	Changes   int
	Groups    int
	Contested int
	Created   int
	Updated   int
}

// Detector runs convergence detection over the change log. It owns the
// detector columns of a signal (score, peak, tier, contributions); status and
// resolution belong to other writers.
type Detector struct {
	traders domain.TraderStore
	signals domain.SignalStore
	changes domain.ChangeStore
	cache   domain.TraderCache
	locks   domain.LockManager
	bus     domain.SignalBus
	window  time.Duration
	log     *slog.Logger
	now     func() time.Time
}

// New builds a detector. cache and bus may be nil; locks must not be.
func New(
	traders domain.TraderStore,
	signals domain.SignalStore,
	changes domain.ChangeStore,
	cache domain.TraderCache,
	locks domain.LockManager,
	bus domain.SignalBus,
	window time.Duration,
	log *slog.Logger,
) *Detector {
	return &Detector{
		traders: traders,
		signals: signals,
		changes: changes,
		cache:   cache,
		locks:   locks,
		bus:     bus,
		window:  window,
		log:     log.With("component", "detector"),
		now:     time.Now,
	}
}

// Run executes one detection pass over all changes inside the trailing
// window. It is idempotent: re-running on an unchanged change-set yields the
// same scores and membership, because contributions merge by wallet.
func (d *Detector) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	now := d.now()

	changes, err := d.changes.ListSince(ctx, now.Add(-d.window))
	if err != nil {
		return stats, fmt.Errorf("detector: list changes: %w", err)
	}
	stats.Changes = len(changes)
	if len(changes) == 0 {
		return stats, nil
	}

	topWallets, err := d.topWallets(ctx)
	if err != nil {
		return stats, fmt.Errorf("detector: top wallets: %w", err)
	}

	groups := groupByMarket(changes)
	stats.Groups = len(groups)

	for _, group := range groups {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if contested(group) {
			stats.Contested++
			d.log.Debug("contested group discarded",
				"condition_id", group[0].ConditionID, "changes", len(group))
			continue
		}

		contribs, latest := d.collectContributions(ctx, group, now)
		if len(contribs) == 0 {
			continue
		}

		tier, ok := tierFor(contribs, topWallets)
		if !ok {
			continue
		}

		created, err := d.upsert(ctx, latest, contribs, tier, now)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				d.log.Warn("signal locked by another pass, skipping",
					"condition_id", latest.ConditionID, "direction", latest.Outcome)
				continue
			}
			return stats, err
		}
		if created {
			stats.Created++
		} else {
			stats.Updated++
		}
	}

	d.log.Info("detection pass complete",
		"changes", stats.Changes, "groups", stats.Groups,
		"contested", stats.Contested, "created", stats.Created, "updated", stats.Updated)
	return stats, nil
}

// Freshness is the step decay applied to evidence by age. Evidence older than
// 48h is excluded entirely and returns 0.
func Freshness(age time.Duration) float64 {
	switch {
	case age < 2*time.Hour:
		return 2.0
	case age < 6*time.Hour:
		return 1.5
	case age < 24*time.Hour:
		return 1.0
	case age < 48*time.Hour:
		return 0.5
	default:
		return 0
	}
}

// groupByMarket buckets changes by condition ID in deterministic order.
func groupByMarket(changes []domain.PositionChange) [][]domain.PositionChange {
	byMarket := map[string][]domain.PositionChange{}
	for _, c := range changes {
		byMarket[c.ConditionID] = append(byMarket[c.ConditionID], c)
	}
	ids := make([]string, 0, len(byMarket))
	for id := range byMarket {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	groups := make([][]domain.PositionChange, 0, len(ids))
	for _, id := range ids {
		groups = append(groups, byMarket[id])
	}
	return groups
}

// contested reports whether the group mixes expansion with contraction or
// mixes outcome sides. Contested groups yield no signal and no partial
// credit: when smart money disagrees there is nothing to follow.
func contested(group []domain.PositionChange) bool {
	first := group[0]
	for _, c := range group[1:] {
		if c.Outcome != first.Outcome {
			return true
		}
		if c.Kind.Expansion() != first.Kind.Expansion() {
			return true
		}
	}
	return false
}

// collectContributions builds one frozen contribution per distinct wallet in
// the group, keeping only the newest change per wallet. Traders that cannot
// be loaded are skipped rather than failing the group. The returned change is
// the newest in the group, used as the upsert's market metadata source.
func (d *Detector) collectContributions(ctx context.Context, group []domain.PositionChange, now time.Time) ([]domain.Contribution, domain.PositionChange) {
	newestPerWallet := map[string]domain.PositionChange{}
	latest := group[0]
	for _, c := range group {
		if prev, ok := newestPerWallet[c.Wallet]; !ok || c.DetectedAt.After(prev.DetectedAt) {
			newestPerWallet[c.Wallet] = c
		}
		if c.DetectedAt.After(latest.DetectedAt) {
			latest = c
		}
	}

	wallets := make([]string, 0, len(newestPerWallet))
	for w := range newestPerWallet {
		wallets = append(wallets, w)
	}
	sort.Strings(wallets)

	category := scoring.ClassifyCategory(latest.Title)

	var contribs []domain.Contribution
	for _, wallet := range wallets {
		change := newestPerWallet[wallet]

		freshness := Freshness(now.Sub(change.DetectedAt))
		if freshness == 0 {
			continue
		}

		trader, err := d.lookupTrader(ctx, wallet)
		if err != nil {
			d.log.Warn("trader unavailable, skipping contribution",
				"wallet", wallet, "error", err)
			continue
		}

		match := 1.0
		if score, ok := trader.CategoryScores[category]; ok && score > 0 {
			match = 1.5
		}

		contribs = append(contribs, domain.Contribution{
			Wallet:        trader.Wallet,
			Username:      trader.Username,
			TraderType:    trader.Type,
			TraderScore:   trader.Score,
			WinRate:       trader.WinRate,
			Conviction:    change.Conviction,
			CategoryMatch: match,
			Freshness:     freshness,
			Kind:          change.Kind,
			Size:          change.NewSize,
			DetectedAt:    change.DetectedAt,
		})
	}
	return contribs, latest
}

func (d *Detector) lookupTrader(ctx context.Context, wallet string) (domain.Trader, error) {
	if d.cache != nil {
		if t, err := d.cache.Get(ctx, wallet); err == nil {
			return t, nil
		}
	}
	t, err := d.traders.GetByWallet(ctx, wallet)
	if err != nil {
		return domain.Trader{}, err
	}
	if d.cache != nil {
		if err := d.cache.Set(ctx, t); err != nil {
			d.log.Warn("trader cache set failed", "wallet", wallet, "error", err)
		}
	}
	return t, nil
}

func (d *Detector) topWallets(ctx context.Context) (map[string]bool, error) {
	if d.cache != nil {
		if wallets, err := d.cache.GetTopWallets(ctx); err == nil && len(wallets) > 0 {
			return toSet(wallets), nil
		}
	}
	top, err := d.traders.TopByScore(ctx, TopTraderRank)
	if err != nil {
		return nil, err
	}
	wallets := make([]string, 0, len(top))
	for _, t := range top {
		wallets = append(wallets, t.Wallet)
	}
	if d.cache != nil {
		if err := d.cache.SetTopWallets(ctx, wallets); err != nil {
			d.log.Warn("top wallets cache set failed", "error", err)
		}
	}
	return toSet(wallets), nil
}

func toSet(wallets []string) map[string]bool {
	set := make(map[string]bool, len(wallets))
	for _, w := range wallets {
		set[w] = true
	}
	return set
}

// tierFor evaluates the ordered tier cascade. First matching rule wins;
// groups matching none produce no signal.
func tierFor(contribs []domain.Contribution, topWallets map[string]bool) (int, bool) {
	score := 0.0
	for _, c := range contribs {
		score += c.Weight()
	}
	n := len(contribs)

	switch {
	case n >= 3 && score > HighThreshold:
		return 1, true
	case n >= 2 && score > MediumThreshold:
		return 2, true
	case n == 1 && topWallets[contribs[0].Wallet] && contribs[0].Conviction > SoloConviction:
		return 3, true
	}
	return 0, false
}

// upsert creates or strengthens the single live signal for the group's
// (condition, direction) pair under a per-key lock, so two concurrent passes
// can never race the same signal into duplication.
func (d *Detector) upsert(ctx context.Context, latest domain.PositionChange, contribs []domain.Contribution, tier int, now time.Time) (created bool, err error) {
	key := fmt.Sprintf("signal:%s:%s", latest.ConditionID, latest.Outcome)
	unlock, err := d.locks.Acquire(ctx, key, upsertLockTTL)
	if err != nil {
		return false, fmt.Errorf("detector: acquire %s: %w", key, err)
	}
	defer unlock()

	existing, err := d.signals.GetOpen(ctx, latest.ConditionID, latest.Outcome)
	switch {
	case err == nil:
		for _, c := range contribs {
			existing.MergeContribution(c)
		}
		existing.RecomputeScore()
		existing.Tier = retier(&existing)
		existing.UpdatedAt = now
		if err := d.signals.Update(ctx, existing); err != nil {
			return false, fmt.Errorf("detector: update signal %s: %w", existing.ID, err)
		}
		d.publish(ctx, "signals:updated", existing)
		return false, nil

	case errors.Is(err, domain.ErrNotFound):
		sig := domain.Signal{
			ID:            uuid.NewString(),
			ConditionID:   latest.ConditionID,
			MarketTitle:   latest.Title,
			MarketSlug:    latest.Slug,
			Direction:     latest.Outcome,
			Category:      scoring.ClassifyCategory(latest.Title),
			Tier:          tier,
			Status:        domain.SignalActive,
			Contributions: contribs,
			EntryPrice:    latest.Price,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		sig.RecomputeScore()
		if err := d.signals.Create(ctx, sig); err != nil {
			return false, fmt.Errorf("detector: create signal: %w", err)
		}
		d.log.Info("signal created",
			"signal_id", sig.ID, "condition_id", sig.ConditionID,
			"direction", sig.Direction, "tier", sig.Tier,
			"score", sig.Score, "participants", len(sig.Contributions))
		d.publish(ctx, "signals:new", sig)
		return true, nil

	default:
		return false, fmt.Errorf("detector: get open signal: %w", err)
	}
}

// retier re-evaluates the tier from the full accumulated membership. A merged
// signal can only be judged on everything it now holds, not the last pass's
// delta.
func retier(s *domain.Signal) int {
	n := len(s.Contributions)
	switch {
	case n >= 3 && s.Score > HighThreshold:
		return 1
	case n >= 2 && s.Score > MediumThreshold:
		return 2
	default:
		return s.Tier
	}
}

func (d *Detector) publish(ctx context.Context, channel string, s domain.Signal) {
	if d.bus == nil {
		return
	}
	payload, err := json.Marshal(signalEvent{
		ID:          s.ID,
		ConditionID: s.ConditionID,
		Title:       s.MarketTitle,
		Direction:   s.Direction,
		Tier:        s.Tier,
		Score:       s.Score,
		Status:      string(s.Status),
	})
	if err != nil {
		return
	}
	if err := d.bus.Publish(ctx, channel, payload); err != nil {
		d.log.Warn("signal publish failed", "channel", channel, "error", err)
	}
	if err := d.bus.StreamAppend(ctx, "stream:signals", payload); err != nil {
		d.log.Warn("signal stream append failed", "error", err)
	}
}

type signalEvent struct {
	ID          string  `json:"id"`
	ConditionID string  `json:"condition_id"`
	Title       string  `json:"title"`
	Direction   string  `json:"direction"`
	Tier        int     `json:"tier"`
	Score       float64 `json:"score"`
	Status      string  `json:"status"`
}
