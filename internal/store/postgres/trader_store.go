package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyradar/internal/domain"
)

// TraderStore implements domain.TraderStore using PostgreSQL.
type TraderStore struct {
	pool *pgxpool.Pool
}

// NewTraderStore creates a new TraderStore backed by the given connection pool.
func NewTraderStore(pool *pgxpool.Pool) *TraderStore {
	return &TraderStore{pool: pool}
}

const traderSelectCols = `wallet, username, profile_image, trader_type, score,
	category_scores, avg_position_size, total_closed, win_rate, roi,
	roi_normalized, timing_quality, consistency, pnl, volume, updated_at`

func scanTraderRow(row pgx.Row) (domain.Trader, error) {
	var t domain.Trader
	var traderType string
	var categoryJSON []byte

	err := row.Scan(
		&t.Wallet, &t.Username, &t.ProfileImage, &traderType, &t.Score,
		&categoryJSON, &t.AvgPositionSize, &t.TotalClosed, &t.WinRate, &t.ROI,
		&t.ROINormalized, &t.TimingQuality, &t.Consistency, &t.PnL, &t.Volume,
		&t.UpdatedAt,
	)
	if err != nil {
		return domain.Trader{}, err
	}
	t.Type = domain.TraderType(traderType)
	if len(categoryJSON) > 0 {
		if err := json.Unmarshal(categoryJSON, &t.CategoryScores); err != nil {
			return domain.Trader{}, fmt.Errorf("unmarshal category scores: %w", err)
		}
	}
	return t, nil
}

func scanTraderRows(rows pgx.Rows) ([]domain.Trader, error) {
	var traders []domain.Trader
	for rows.Next() {
		t, err := scanTraderRow(rows)
		if err != nil {
			return nil, err
		}
		traders = append(traders, t)
	}
	return traders, rows.Err()
}

// Upsert inserts or fully replaces a trader row keyed by wallet.
func (s *TraderStore) Upsert(ctx context.Context, t domain.Trader) error {
	categoryJSON, err := json.Marshal(t.CategoryScores)
	if err != nil {
		return fmt.Errorf("postgres: marshal category scores: %w", err)
	}

	const query = `
		INSERT INTO traders (
			wallet, username, profile_image, trader_type, score,
			category_scores, avg_position_size, total_closed, win_rate, roi,
			roi_normalized, timing_quality, consistency, pnl, volume, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16
		)
		ON CONFLICT (wallet) DO UPDATE SET
			username          = EXCLUDED.username,
			profile_image     = EXCLUDED.profile_image,
			trader_type       = EXCLUDED.trader_type,
			score             = EXCLUDED.score,
			category_scores   = EXCLUDED.category_scores,
			avg_position_size = EXCLUDED.avg_position_size,
			total_closed      = EXCLUDED.total_closed,
			win_rate          = EXCLUDED.win_rate,
			roi               = EXCLUDED.roi,
			roi_normalized    = EXCLUDED.roi_normalized,
			timing_quality    = EXCLUDED.timing_quality,
			consistency       = EXCLUDED.consistency,
			pnl               = EXCLUDED.pnl,
			volume            = EXCLUDED.volume,
			updated_at        = EXCLUDED.updated_at`

	_, err = s.pool.Exec(ctx, query,
		t.Wallet, t.Username, t.ProfileImage, string(t.Type), t.Score,
		categoryJSON, t.AvgPositionSize, t.TotalClosed, t.WinRate, t.ROI,
		t.ROINormalized, t.TimingQuality, t.Consistency, t.PnL, t.Volume,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert trader %s: %w", t.Wallet, err)
	}
	return nil
}

// GetByWallet retrieves a single trader by wallet.
func (s *TraderStore) GetByWallet(ctx context.Context, wallet string) (domain.Trader, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+traderSelectCols+` FROM traders WHERE wallet = $1`, wallet)

	t, err := scanTraderRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trader{}, domain.ErrNotFound
		}
		return domain.Trader{}, fmt.Errorf("postgres: get trader %s: %w", wallet, err)
	}
	return t, nil
}

// List returns traders sorted by score descending, optionally filtered by type.
func (s *TraderStore) List(ctx context.Context, f domain.TraderFilter) ([]domain.Trader, error) {
	query := `SELECT ` + traderSelectCols + ` FROM traders`
	args := []any{}
	argIdx := 1

	if f.Type != "" {
		query += fmt.Sprintf(" WHERE trader_type = $%d", argIdx)
		args = append(args, string(f.Type))
		argIdx++
	}

	query += " ORDER BY score DESC"

	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, f.Limit)
		argIdx++
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, f.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list traders: %w", err)
	}
	defer rows.Close()

	traders, err := scanTraderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan traders: %w", err)
	}
	return traders, nil
}

// TopByScore returns the n best-scored traders.
func (s *TraderStore) TopByScore(ctx context.Context, n int) ([]domain.Trader, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+traderSelectCols+` FROM traders ORDER BY score DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("postgres: top traders: %w", err)
	}
	defer rows.Close()

	traders, err := scanTraderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan top traders: %w", err)
	}
	return traders, nil
}

// Count returns the size of the tracked population.
func (s *TraderStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM traders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count traders: %w", err)
	}
	return n, nil
}

// Compile-time interface check.
var _ domain.TraderStore = (*TraderStore)(nil)
