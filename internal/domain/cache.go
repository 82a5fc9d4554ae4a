package domain

import (
	"context"
	"time"
)

// TraderCache provides fast trader lookups during detection passes.
type TraderCache interface {
	Set(ctx context.Context, t Trader) error
	Get(ctx context.Context, wallet string) (Trader, error)
	SetTopWallets(ctx context.Context, wallets []string) error
	GetTopWallets(ctx context.Context) ([]string, error)
	Invalidate(ctx context.Context, wallet string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking. Used for the per-(condition,
// direction) signal upsert exclusion and the single-flight cycle guard.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams for signal events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
