package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyradar/internal/domain"
)

// ChangeStore implements domain.ChangeStore using PostgreSQL.
type ChangeStore struct {
	pool *pgxpool.Pool
}

// NewChangeStore creates a new ChangeStore backed by the given connection pool.
func NewChangeStore(pool *pgxpool.Pool) *ChangeStore {
	return &ChangeStore{pool: pool}
}

const changeSelectCols = `id, wallet, condition_id, title, slug, event_slug,
	outcome, kind, old_size, new_size, price, conviction, detected_at`

func scanChangeRows(rows pgx.Rows) ([]domain.PositionChange, error) {
	var changes []domain.PositionChange
	for rows.Next() {
		var c domain.PositionChange
		var kind string

		if err := rows.Scan(
			&c.ID, &c.Wallet, &c.ConditionID, &c.Title, &c.Slug, &c.EventSlug,
			&c.Outcome, &kind, &c.OldSize, &c.NewSize, &c.Price, &c.Conviction,
			&c.DetectedAt,
		); err != nil {
			return nil, err
		}
		c.Kind = domain.ChangeKind(kind)
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// InsertBatch appends change facts in one round trip using pgx batching.
func (s *ChangeStore) InsertBatch(ctx context.Context, changes []domain.PositionChange) error {
	if len(changes) == 0 {
		return nil
	}

	const query = `
		INSERT INTO position_changes (
			wallet, condition_id, title, slug, event_slug,
			outcome, kind, old_size, new_size, price, conviction, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	batch := &pgx.Batch{}
	for _, c := range changes {
		batch.Queue(query,
			c.Wallet, c.ConditionID, c.Title, c.Slug, c.EventSlug,
			c.Outcome, string(c.Kind), c.OldSize, c.NewSize, c.Price,
			c.Conviction, c.DetectedAt,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range changes {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: insert changes: %w", err)
		}
	}
	return nil
}

// ListSince returns all changes detected at or after the given time, oldest
// first.
func (s *ChangeStore) ListSince(ctx context.Context, since time.Time) ([]domain.PositionChange, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+changeSelectCols+` FROM position_changes
		 WHERE detected_at >= $1
		 ORDER BY detected_at ASC, id ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: list changes since %s: %w", since, err)
	}
	defer rows.Close()

	changes, err := scanChangeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan changes: %w", err)
	}
	return changes, nil
}

// ListByWallet returns a wallet's changes newest first with pagination.
func (s *ChangeStore) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.PositionChange, error) {
	query := `SELECT ` + changeSelectCols + ` FROM position_changes WHERE wallet = $1`
	args := []any{wallet}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND detected_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND detected_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY detected_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list changes for %s: %w", wallet, err)
	}
	defer rows.Close()

	changes, err := scanChangeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan changes: %w", err)
	}
	return changes, nil
}

// Compile-time interface check.
var _ domain.ChangeStore = (*ChangeStore)(nil)
