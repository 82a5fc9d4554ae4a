package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyradar/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL. Each row
// holds one wallet's full position set at one scan instant, serialized as
// JSONB: snapshots are read back whole or not at all, so a document column
// beats one row per position.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a new SnapshotStore backed by the given connection pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Insert appends a snapshot row.
func (s *SnapshotStore) Insert(ctx context.Context, snap domain.PositionSnapshot) error {
	positionsJSON, err := json.Marshal(snap.Positions)
	if err != nil {
		return fmt.Errorf("postgres: marshal positions: %w", err)
	}

	const query = `
		INSERT INTO position_snapshots (wallet, positions, scanned_at)
		VALUES ($1, $2, $3)`

	if _, err := s.pool.Exec(ctx, query, snap.Wallet, positionsJSON, snap.ScannedAt); err != nil {
		return fmt.Errorf("postgres: insert snapshot %s: %w", snap.Wallet, err)
	}
	return nil
}

// GetLatest returns the most recent snapshot for the wallet.
func (s *SnapshotStore) GetLatest(ctx context.Context, wallet string) (domain.PositionSnapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT wallet, positions, scanned_at
		FROM position_snapshots
		WHERE wallet = $1
		ORDER BY scanned_at DESC
		LIMIT 1`, wallet)

	snap, err := scanSnapshotRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PositionSnapshot{}, domain.ErrNotFound
		}
		return domain.PositionSnapshot{}, fmt.Errorf("postgres: get latest snapshot %s: %w", wallet, err)
	}
	return snap, nil
}

// ListBefore returns snapshots scanned strictly before the cutoff, oldest
// first, for archival.
func (s *SnapshotStore) ListBefore(ctx context.Context, before time.Time) ([]domain.PositionSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT wallet, positions, scanned_at
		FROM position_snapshots
		WHERE scanned_at < $1
		ORDER BY scanned_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots before %s: %w", before, err)
	}
	defer rows.Close()

	var snaps []domain.PositionSnapshot
	for rows.Next() {
		snap, err := scanSnapshotRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list snapshots rows: %w", err)
	}
	return snaps, nil
}

// DeleteBefore removes snapshots scanned strictly before the cutoff and
// returns how many rows were deleted.
func (s *SnapshotStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM position_snapshots WHERE scanned_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete snapshots before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

func scanSnapshotRow(row pgx.Row) (domain.PositionSnapshot, error) {
	var snap domain.PositionSnapshot
	var positionsJSON []byte

	if err := row.Scan(&snap.Wallet, &positionsJSON, &snap.ScannedAt); err != nil {
		return domain.PositionSnapshot{}, err
	}
	if len(positionsJSON) > 0 {
		if err := json.Unmarshal(positionsJSON, &snap.Positions); err != nil {
			return domain.PositionSnapshot{}, fmt.Errorf("unmarshal positions: %w", err)
		}
	}
	return snap, nil
}

// Compile-time interface check.
var _ domain.SnapshotStore = (*SnapshotStore)(nil)
