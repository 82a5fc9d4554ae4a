// Package domaintest provides in-memory implementations of the domain store
// and cache interfaces for tests.
package domaintest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/polyradar/internal/domain"
)

// TraderStore is an in-memory domain.TraderStore.
type TraderStore struct {
	mu      sync.Mutex
	Traders map[string]domain.Trader
}

var _ domain.TraderStore = (*TraderStore)(nil)

func NewTraderStore(traders ...domain.Trader) *TraderStore {
	s := &TraderStore{Traders: map[string]domain.Trader{}}
	for _, t := range traders {
		s.Traders[t.Wallet] = t
	}
	return s
}

func (s *TraderStore) Upsert(_ context.Context, t domain.Trader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Traders[t.Wallet] = t
	return nil
}

func (s *TraderStore) GetByWallet(_ context.Context, wallet string) (domain.Trader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.Traders[wallet]
	if !ok {
		return domain.Trader{}, domain.ErrNotFound
	}
	return t, nil
}

func (s *TraderStore) List(_ context.Context, f domain.TraderFilter) ([]domain.Trader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Trader
	for _, t := range s.Traders {
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (s *TraderStore) TopByScore(_ context.Context, n int) ([]domain.Trader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Trader, 0, len(s.Traders))
	for _, t := range s.Traders {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *TraderStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.Traders)), nil
}

// SignalStore is an in-memory domain.SignalStore enforcing the unique
// non-terminal (condition, direction) invariant the way the real schema does.
type SignalStore struct {
	mu      sync.Mutex
	Signals map[string]domain.Signal
}

var _ domain.SignalStore = (*SignalStore)(nil)

func NewSignalStore(signals ...domain.Signal) *SignalStore {
	s := &SignalStore{Signals: map[string]domain.Signal{}}
	for _, sig := range signals {
		s.Signals[sig.ID] = sig
	}
	return s
}

func (s *SignalStore) Create(_ context.Context, sig domain.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.Signals {
		if existing.ConditionID == sig.ConditionID &&
			existing.Direction == sig.Direction &&
			!existing.Status.Terminal() {
			return domain.ErrAlreadyExists
		}
	}
	s.Signals[sig.ID] = sig
	return nil
}

func (s *SignalStore) Update(_ context.Context, sig domain.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.Signals[sig.ID]
	if !ok {
		return domain.ErrNotFound
	}
	existing.Score = sig.Score
	existing.PeakScore = sig.PeakScore
	existing.Tier = sig.Tier
	existing.Contributions = sig.Contributions
	existing.UpdatedAt = sig.UpdatedAt
	s.Signals[sig.ID] = existing
	return nil
}

func (s *SignalStore) UpdateStatus(_ context.Context, id string, status domain.SignalStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig, ok := s.Signals[id]
	if !ok {
		return domain.ErrNotFound
	}
	sig.Status = status
	s.Signals[id] = sig
	return nil
}

func (s *SignalStore) MarkResolved(_ context.Context, id string, outcome string, pnlPercent float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig, ok := s.Signals[id]
	if !ok {
		return domain.ErrNotFound
	}
	if sig.Status == domain.SignalResolved {
		return nil
	}
	sig.Status = domain.SignalResolved
	sig.ResolutionOutcome = outcome
	sig.PnLPercent = &pnlPercent
	sig.ResolvedAt = &at
	s.Signals[id] = sig
	return nil
}

func (s *SignalStore) GetByID(_ context.Context, id string) (domain.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig, ok := s.Signals[id]
	if !ok {
		return domain.Signal{}, domain.ErrNotFound
	}
	return sig, nil
}

func (s *SignalStore) GetOpen(_ context.Context, conditionID, direction string) (domain.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sig := range s.Signals {
		if sig.ConditionID == conditionID && sig.Direction == direction && !sig.Status.Terminal() {
			return sig, nil
		}
	}
	return domain.Signal{}, domain.ErrNotFound
}

func (s *SignalStore) ListOpen(_ context.Context) ([]domain.Signal, error) {
	return s.list(func(sig domain.Signal) bool { return !sig.Status.Terminal() })
}

func (s *SignalStore) ListUnresolved(_ context.Context) ([]domain.Signal, error) {
	return s.list(func(sig domain.Signal) bool { return sig.Status != domain.SignalResolved })
}

func (s *SignalStore) List(_ context.Context, f domain.SignalFilter) ([]domain.Signal, error) {
	return s.list(func(sig domain.Signal) bool {
		if f.Tier != 0 && sig.Tier != f.Tier {
			return false
		}
		if f.Status != "" && sig.Status != f.Status {
			return false
		}
		if f.Wallet != "" && !sig.Contributor(f.Wallet) {
			return false
		}
		return true
	})
}

func (s *SignalStore) MarkAlerted(_ context.Context, id string) error {
	return s.flag(id, func(sig *domain.Signal) { sig.Alerted = true })
}

func (s *SignalStore) MarkResolutionAlerted(_ context.Context, id string) error {
	return s.flag(id, func(sig *domain.Signal) { sig.ResolutionAlerted = true })
}

func (s *SignalStore) ListUnalerted(_ context.Context) ([]domain.Signal, error) {
	return s.list(func(sig domain.Signal) bool { return !sig.Alerted && !sig.Status.Terminal() })
}

func (s *SignalStore) ListUnalertedResolutions(_ context.Context) ([]domain.Signal, error) {
	return s.list(func(sig domain.Signal) bool {
		return sig.Status == domain.SignalResolved && !sig.ResolutionAlerted
	})
}

func (s *SignalStore) list(keep func(domain.Signal) bool) ([]domain.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Signal
	for _, sig := range s.Signals {
		if keep(sig) {
			out = append(out, sig)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *SignalStore) flag(id string, apply func(*domain.Signal)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig, ok := s.Signals[id]
	if !ok {
		return domain.ErrNotFound
	}
	apply(&sig)
	s.Signals[id] = sig
	return nil
}

// ChangeStore is an in-memory domain.ChangeStore.
type ChangeStore struct {
	mu      sync.Mutex
	Changes []domain.PositionChange
}

var _ domain.ChangeStore = (*ChangeStore)(nil)

func NewChangeStore(changes ...domain.PositionChange) *ChangeStore {
	return &ChangeStore{Changes: changes}
}

func (s *ChangeStore) InsertBatch(_ context.Context, changes []domain.PositionChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Changes = append(s.Changes, changes...)
	return nil
}

func (s *ChangeStore) ListSince(_ context.Context, since time.Time) ([]domain.PositionChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PositionChange
	for _, c := range s.Changes {
		if !c.DetectedAt.Before(since) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.Before(out[j].DetectedAt) })
	return out, nil
}

func (s *ChangeStore) ListByWallet(_ context.Context, wallet string, _ domain.ListOpts) ([]domain.PositionChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PositionChange
	for _, c := range s.Changes {
		if c.Wallet == wallet {
			out = append(out, c)
		}
	}
	return out, nil
}

// SnapshotStore is an in-memory domain.SnapshotStore.
type SnapshotStore struct {
	mu        sync.Mutex
	Snapshots []domain.PositionSnapshot
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)

func NewSnapshotStore(snaps ...domain.PositionSnapshot) *SnapshotStore {
	return &SnapshotStore{Snapshots: snaps}
}

func (s *SnapshotStore) Insert(_ context.Context, snap domain.PositionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Snapshots = append(s.Snapshots, snap)
	return nil
}

func (s *SnapshotStore) GetLatest(_ context.Context, wallet string) (domain.PositionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest domain.PositionSnapshot
	found := false
	for _, snap := range s.Snapshots {
		if snap.Wallet != wallet {
			continue
		}
		if !found || snap.ScannedAt.After(latest.ScannedAt) {
			latest = snap
			found = true
		}
	}
	if !found {
		return domain.PositionSnapshot{}, domain.ErrNotFound
	}
	return latest, nil
}

func (s *SnapshotStore) ListBefore(_ context.Context, before time.Time) ([]domain.PositionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PositionSnapshot
	for _, snap := range s.Snapshots {
		if snap.ScannedAt.Before(before) {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (s *SnapshotStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []domain.PositionSnapshot
	var deleted int64
	for _, snap := range s.Snapshots {
		if snap.ScannedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, snap)
	}
	s.Snapshots = kept
	return deleted, nil
}

// LockManager is an in-memory domain.LockManager. Keys in Held simulate
// contention from another process.
type LockManager struct {
	mu       sync.Mutex
	Held     map[string]bool
	Acquired []string
}

var _ domain.LockManager = (*LockManager)(nil)

func NewLockManager() *LockManager {
	return &LockManager{Held: map[string]bool{}}
}

func (l *LockManager) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Held[key] {
		return nil, domain.ErrLockHeld
	}
	l.Held[key] = true
	l.Acquired = append(l.Acquired, key)
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.Held, key)
	}, nil
}

// TraderCache is an in-memory domain.TraderCache.
type TraderCache struct {
	mu      sync.Mutex
	Traders map[string]domain.Trader
	Top     []string
}

var _ domain.TraderCache = (*TraderCache)(nil)

func NewTraderCache() *TraderCache {
	return &TraderCache{Traders: map[string]domain.Trader{}}
}

func (c *TraderCache) Set(_ context.Context, t domain.Trader) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Traders[t.Wallet] = t
	return nil
}

func (c *TraderCache) Get(_ context.Context, wallet string) (domain.Trader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.Traders[wallet]
	if !ok {
		return domain.Trader{}, domain.ErrNotFound
	}
	return t, nil
}

func (c *TraderCache) SetTopWallets(_ context.Context, wallets []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Top = append([]string(nil), wallets...)
	return nil
}

func (c *TraderCache) GetTopWallets(_ context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.Top...), nil
}

func (c *TraderCache) Invalidate(_ context.Context, wallet string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.Traders, wallet)
	return nil
}

// SignalBus records published payloads.
type SignalBus struct {
	mu        sync.Mutex
	Published map[string][][]byte
	Streams   map[string][][]byte
}

var _ domain.SignalBus = (*SignalBus)(nil)

func NewSignalBus() *SignalBus {
	return &SignalBus{Published: map[string][][]byte{}, Streams: map[string][][]byte{}}
}

func (b *SignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Published[channel] = append(b.Published[channel], payload)
	return nil
}

func (b *SignalBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (b *SignalBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Streams[stream] = append(b.Streams[stream], payload)
	return nil
}

func (b *SignalBus) StreamRead(_ context.Context, stream string, _ string, count int) ([]domain.StreamMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.StreamMessage
	for i, p := range b.Streams[stream] {
		if count > 0 && len(out) >= count {
			break
		}
		out = append(out, domain.StreamMessage{ID: string(rune('0' + i)), Payload: p})
	}
	return out, nil
}
