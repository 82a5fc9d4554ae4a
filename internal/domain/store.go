package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TraderFilter narrows trader list queries.
type TraderFilter struct {
	Type TraderType // empty = all types
	ListOpts
}

// SignalFilter narrows signal list queries.
type SignalFilter struct {
	Tier   int          // 0 = all tiers
	Status SignalStatus // empty = all statuses
	Wallet string       // restrict to signals the wallet contributed to
	ListOpts
}

// TraderStore persists the tracked population. Rows are keyed by wallet and
// mutable: each watchlist rebuild upserts fresh stats.
type TraderStore interface {
	Upsert(ctx context.Context, t Trader) error
	GetByWallet(ctx context.Context, wallet string) (Trader, error)
	List(ctx context.Context, f TraderFilter) ([]Trader, error)
	TopByScore(ctx context.Context, n int) ([]Trader, error)
	Count(ctx context.Context) (int64, error)
}

// SnapshotStore persists append-only position snapshots.
type SnapshotStore interface {
	Insert(ctx context.Context, snap PositionSnapshot) error
	// GetLatest returns the most recent snapshot for the wallet, or
	// ErrNotFound when the wallet has never been scanned.
	GetLatest(ctx context.Context, wallet string) (PositionSnapshot, error)
	// ListBefore returns snapshots scanned strictly before the cutoff,
	// flattened to rows, for archival.
	ListBefore(ctx context.Context, before time.Time) ([]PositionSnapshot, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ChangeStore persists append-only position change facts.
type ChangeStore interface {
	InsertBatch(ctx context.Context, changes []PositionChange) error
	// ListSince returns all changes detected at or after the given time,
	// oldest first.
	ListSince(ctx context.Context, since time.Time) ([]PositionChange, error)
	ListByWallet(ctx context.Context, wallet string, opts ListOpts) ([]PositionChange, error)
}

// SignalStore persists signals. Mutations are split by column owner: the
// detector calls Create/Update, the lifecycle manager calls UpdateStatus,
// and the reconciler calls MarkResolved.
type SignalStore interface {
	Create(ctx context.Context, s Signal) error
	// Update rewrites the detector-owned columns (score, peak, tier,
	// contributions, updated_at). Status and resolution fields are left
	// untouched.
	Update(ctx context.Context, s Signal) error
	UpdateStatus(ctx context.Context, id string, status SignalStatus) error
	// MarkResolved records the resolution outcome and P&L and flips the
	// status to RESOLVED. It is conditional on the row not already being
	// RESOLVED; reconciling twice is a no-op.
	MarkResolved(ctx context.Context, id string, outcome string, pnlPercent float64, at time.Time) error

	GetByID(ctx context.Context, id string) (Signal, error)
	// GetOpen returns the single non-terminal signal for the
	// (condition, direction) pair, or ErrNotFound.
	GetOpen(ctx context.Context, conditionID, direction string) (Signal, error)
	ListOpen(ctx context.Context) ([]Signal, error)
	ListUnresolved(ctx context.Context) ([]Signal, error)
	List(ctx context.Context, f SignalFilter) ([]Signal, error)

	MarkAlerted(ctx context.Context, id string) error
	MarkResolutionAlerted(ctx context.Context, id string) error
	ListUnalerted(ctx context.Context) ([]Signal, error)
	// ListUnalertedResolutions returns RESOLVED signals whose resolution
	// alert has not been sent yet.
	ListUnalertedResolutions(ctx context.Context) ([]Signal, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
