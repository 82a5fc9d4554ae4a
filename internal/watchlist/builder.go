// Package watchlist builds and refreshes the tracked trader population from
// the public leaderboard and each candidate's activity history.
package watchlist

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyradar/internal/domain"
	"github.com/alanyoungcy/polyradar/internal/platform/polymarket"
	"github.com/alanyoungcy/polyradar/internal/scoring"
)

const (
	leaderboardWindow = "30d"
	maxActivityRows   = 3000
)

// LeaderboardFeed supplies ranked wallets for candidate discovery.
type LeaderboardFeed interface {
	GetLeaderboard(ctx context.Context, rankBy, window string, limit int) ([]polymarket.APILeaderboardEntry, error)
}

// ActivityFeed supplies a wallet's raw trading activity, newest first.
type ActivityFeed interface {
	GetActivity(ctx context.Context, wallet string, maxRows int) ([]polymarket.APIActivity, error)
}

// Stats summarizes one watchlist rebuild.
type Stats struct {
	Candidates int
	Scored     int
	Excluded   int
	Failed     int
}

// Builder rebuilds the watchlist: it merges the PnL and volume leaderboards
// into a candidate set, scores every candidate from its closed history, and
// upserts the surviving traders.
type Builder struct {
	leaderboard LeaderboardFeed
	activity    ActivityFeed
	traders     domain.TraderStore
	cache       domain.TraderCache
	size        int // candidates taken per leaderboard
	minClosed   int // closed trades required to join the population
	concurrency int
	log         *slog.Logger
	now         func() time.Time
}

// New builds a watchlist builder. cache may be nil.
func New(
	leaderboard LeaderboardFeed,
	activity ActivityFeed,
	traders domain.TraderStore,
	cache domain.TraderCache,
	size, minClosed, concurrency int,
	log *slog.Logger,
) *Builder {
	if concurrency < 1 {
		concurrency = 1
	}
	if minClosed < 1 {
		minClosed = 1
	}
	return &Builder{
		leaderboard: leaderboard,
		activity:    activity,
		traders:     traders,
		cache:       cache,
		size:        size,
		minClosed:   minClosed,
		concurrency: concurrency,
		log:         log.With("component", "watchlist"),
		now:         time.Now,
	}
}

// Run rebuilds the whole watchlist. Candidates whose activity cannot be
// fetched are skipped; candidates with no closed trades are excluded from
// the population entirely. Final scores are relative to this cohort, so the
// whole set is normalized together before persisting.
func (b *Builder) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	candidates, err := b.collectCandidates(ctx)
	if err != nil {
		return stats, err
	}
	stats.Candidates = len(candidates)

	var (
		mu      sync.Mutex
		scored  []domain.Trader
		failed  int
		dropped int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	now := b.now()
	for _, cand := range candidates {
		g.Go(func() error {
			activity, err := b.activity.GetActivity(gctx, cand.ProxyWallet, maxActivityRows)
			if err != nil {
				b.log.Warn("activity fetch failed, skipping candidate",
					"wallet", cand.ProxyWallet, "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}

			closed := SynthesizeClosed(activity)
			if len(closed) < b.minClosed {
				mu.Lock()
				dropped++
				mu.Unlock()
				return nil
			}
			trader, ok := scoring.Score(cand.ProxyWallet, cand.Name, closed, cand.PnL, cand.Volume, now)
			if !ok {
				mu.Lock()
				dropped++
				mu.Unlock()
				return nil
			}
			trader.ProfileImage = cand.ProfileImage

			mu.Lock()
			scored = append(scored, trader)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	stats.Failed = failed
	stats.Excluded = dropped

	scoring.Finalize(scored)

	for _, trader := range scored {
		if err := b.traders.Upsert(ctx, trader); err != nil {
			return stats, fmt.Errorf("watchlist: upsert trader %s: %w", trader.Wallet, err)
		}
		if b.cache != nil {
			if err := b.cache.Set(ctx, trader); err != nil {
				b.log.Warn("trader cache set failed", "wallet", trader.Wallet, "error", err)
			}
		}
	}
	stats.Scored = len(scored)

	b.refreshTopWallets(ctx, scored)

	b.log.Info("watchlist rebuilt",
		"candidates", stats.Candidates, "scored", stats.Scored,
		"excluded", stats.Excluded, "failed", stats.Failed)
	return stats, nil
}

// collectCandidates merges the PnL and volume leaderboards, deduplicated by
// wallet. Appearing on both boards keeps the first (PnL) entry.
func (b *Builder) collectCandidates(ctx context.Context) ([]polymarket.APILeaderboardEntry, error) {
	var merged []polymarket.APILeaderboardEntry
	seen := map[string]bool{}

	for _, rankBy := range []string{"pnl", "vol"} {
		entries, err := b.leaderboard.GetLeaderboard(ctx, rankBy, leaderboardWindow, b.size)
		if err != nil {
			return nil, fmt.Errorf("watchlist: leaderboard %s: %w", rankBy, err)
		}
		for _, e := range entries {
			if e.ProxyWallet == "" || seen[e.ProxyWallet] {
				continue
			}
			seen[e.ProxyWallet] = true
			merged = append(merged, e)
		}
	}
	return merged, nil
}

func (b *Builder) refreshTopWallets(ctx context.Context, scored []domain.Trader) {
	if b.cache == nil || len(scored) == 0 {
		return
	}
	ranked := append([]domain.Trader(nil), scored...)
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	n := len(ranked)
	if n > 10 {
		n = 10
	}
	wallets := make([]string, 0, n)
	for _, t := range ranked[:n] {
		wallets = append(wallets, t.Wallet)
	}
	if err := b.cache.SetTopWallets(ctx, wallets); err != nil {
		b.log.Warn("top wallets cache set failed", "error", err)
	}
}
