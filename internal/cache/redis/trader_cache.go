package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polyradar/internal/domain"
)

const (
	traderTTL     = 30 * time.Minute
	topWalletsTTL = 30 * time.Minute
)

// TraderCache implements domain.TraderCache using JSON-serialized trader
// rows plus a list holding the current top-10 wallet ranking.
//
// Key schema:
//
//	trader:{wallet} - string value containing JSON
//	traders:top     - list of wallet addresses, best first
type TraderCache struct {
	rdb *redis.Client
}

// NewTraderCache creates a TraderCache backed by the given Client.
func NewTraderCache(c *Client) *TraderCache {
	return &TraderCache{rdb: c.Underlying()}
}

func traderKey(wallet string) string { return "trader:" + wallet }

const topWalletsKey = "traders:top"

// Set stores a trader row with a 30-minute TTL. Detection passes read
// through this cache; the watchlist builder refreshes it on every rebuild.
func (tc *TraderCache) Set(ctx context.Context, t domain.Trader) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("redis: marshal trader %s: %w", t.Wallet, err)
	}
	if err := tc.rdb.Set(ctx, traderKey(t.Wallet), data, traderTTL).Err(); err != nil {
		return fmt.Errorf("redis: set trader %s: %w", t.Wallet, err)
	}
	return nil
}

// Get retrieves a trader by wallet. It returns domain.ErrNotFound when the
// key does not exist.
func (tc *TraderCache) Get(ctx context.Context, wallet string) (domain.Trader, error) {
	data, err := tc.rdb.Get(ctx, traderKey(wallet)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Trader{}, domain.ErrNotFound
		}
		return domain.Trader{}, fmt.Errorf("redis: get trader %s: %w", wallet, err)
	}

	var t domain.Trader
	if err := json.Unmarshal(data, &t); err != nil {
		return domain.Trader{}, fmt.Errorf("redis: unmarshal trader %s: %w", wallet, err)
	}
	return t, nil
}

// SetTopWallets replaces the top-10 ranking atomically.
func (tc *TraderCache) SetTopWallets(ctx context.Context, wallets []string) error {
	pipe := tc.rdb.TxPipeline()
	pipe.Del(ctx, topWalletsKey)
	if len(wallets) > 0 {
		args := make([]interface{}, len(wallets))
		for i, w := range wallets {
			args[i] = w
		}
		pipe.RPush(ctx, topWalletsKey, args...)
		pipe.Expire(ctx, topWalletsKey, topWalletsTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set top wallets: %w", err)
	}
	return nil
}

// GetTopWallets returns the cached top-10 ranking, best first. An expired or
// missing key yields an empty slice, not an error.
func (tc *TraderCache) GetTopWallets(ctx context.Context) ([]string, error) {
	wallets, err := tc.rdb.LRange(ctx, topWalletsKey, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: get top wallets: %w", err)
	}
	return wallets, nil
}

// Invalidate removes a trader row from the cache.
func (tc *TraderCache) Invalidate(ctx context.Context, wallet string) error {
	if err := tc.rdb.Del(ctx, traderKey(wallet)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate trader %s: %w", wallet, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.TraderCache = (*TraderCache)(nil)
