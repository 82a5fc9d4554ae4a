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

// SignalStore implements domain.SignalStore using PostgreSQL. Mutations are
// split by column owner: Update writes only the detector-owned columns,
// UpdateStatus only the status, MarkResolved only the resolution fields, so
// concurrent writers cannot clobber each other. A partial unique index on
// (condition_id, direction) over non-terminal rows backs the single-live-
// signal invariant at the storage level.
type SignalStore struct {
	pool *pgxpool.Pool
}

// NewSignalStore creates a new SignalStore backed by the given connection pool.
func NewSignalStore(pool *pgxpool.Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

const signalSelectCols = `id, condition_id, market_title, market_slug, direction,
	category, score, peak_score, tier, status, contributions, entry_price,
	created_at, updated_at, resolved_at, resolution_outcome, pnl_percent,
	alerted, resolution_alerted`

func scanSignalRow(row pgx.Row) (domain.Signal, error) {
	var s domain.Signal
	var status string
	var contributionsJSON []byte

	err := row.Scan(
		&s.ID, &s.ConditionID, &s.MarketTitle, &s.MarketSlug, &s.Direction,
		&s.Category, &s.Score, &s.PeakScore, &s.Tier, &status,
		&contributionsJSON, &s.EntryPrice,
		&s.CreatedAt, &s.UpdatedAt, &s.ResolvedAt, &s.ResolutionOutcome,
		&s.PnLPercent, &s.Alerted, &s.ResolutionAlerted,
	)
	if err != nil {
		return domain.Signal{}, err
	}
	s.Status = domain.SignalStatus(status)
	if len(contributionsJSON) > 0 {
		if err := json.Unmarshal(contributionsJSON, &s.Contributions); err != nil {
			return domain.Signal{}, fmt.Errorf("unmarshal contributions: %w", err)
		}
	}
	return s, nil
}

func scanSignalRows(rows pgx.Rows) ([]domain.Signal, error) {
	var signals []domain.Signal
	for rows.Next() {
		s, err := scanSignalRow(rows)
		if err != nil {
			return nil, err
		}
		signals = append(signals, s)
	}
	return signals, rows.Err()
}

// Create inserts a new signal. A live signal already holding the
// (condition, direction) slot surfaces as domain.ErrAlreadyExists via the
// partial unique index.
func (s *SignalStore) Create(ctx context.Context, sig domain.Signal) error {
	contributionsJSON, err := json.Marshal(sig.Contributions)
	if err != nil {
		return fmt.Errorf("postgres: marshal contributions: %w", err)
	}

	const query = `
		INSERT INTO signals (
			id, condition_id, market_title, market_slug, direction,
			category, score, peak_score, tier, status, contributions,
			entry_price, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11,
			$12, $13, $14
		)`

	_, err = s.pool.Exec(ctx, query,
		sig.ID, sig.ConditionID, sig.MarketTitle, sig.MarketSlug, sig.Direction,
		sig.Category, sig.Score, sig.PeakScore, sig.Tier, string(sig.Status),
		contributionsJSON, sig.EntryPrice, sig.CreatedAt, sig.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: create signal %s/%s: %w",
				sig.ConditionID, sig.Direction, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create signal %s: %w", sig.ID, err)
	}
	return nil
}

// Update rewrites the detector-owned columns only.
func (s *SignalStore) Update(ctx context.Context, sig domain.Signal) error {
	contributionsJSON, err := json.Marshal(sig.Contributions)
	if err != nil {
		return fmt.Errorf("postgres: marshal contributions: %w", err)
	}

	const query = `
		UPDATE signals SET
			score         = $2,
			peak_score    = $3,
			tier          = $4,
			contributions = $5,
			updated_at    = $6
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		sig.ID, sig.Score, sig.PeakScore, sig.Tier, contributionsJSON, sig.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: update signal %s: %w", sig.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateStatus rewrites the status column only.
func (s *SignalStore) UpdateStatus(ctx context.Context, id string, status domain.SignalStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE signals SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, string(status))
	if err != nil {
		return fmt.Errorf("postgres: update signal status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkResolved records the resolution and flips status to RESOLVED. The
// status guard in the WHERE clause makes re-running a no-op.
func (s *SignalStore) MarkResolved(ctx context.Context, id string, outcome string, pnlPercent float64, at time.Time) error {
	const query = `
		UPDATE signals SET
			status             = 'RESOLVED',
			resolution_outcome = $2,
			pnl_percent        = $3,
			resolved_at        = $4,
			updated_at         = NOW()
		WHERE id = $1 AND status != 'RESOLVED'`

	if _, err := s.pool.Exec(ctx, query, id, outcome, pnlPercent, at); err != nil {
		return fmt.Errorf("postgres: mark resolved %s: %w", id, err)
	}
	return nil
}

// GetByID retrieves a single signal.
func (s *SignalStore) GetByID(ctx context.Context, id string) (domain.Signal, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+signalSelectCols+` FROM signals WHERE id = $1`, id)

	sig, err := scanSignalRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Signal{}, domain.ErrNotFound
		}
		return domain.Signal{}, fmt.Errorf("postgres: get signal %s: %w", id, err)
	}
	return sig, nil
}

// GetOpen returns the single non-terminal signal for (condition, direction).
func (s *SignalStore) GetOpen(ctx context.Context, conditionID, direction string) (domain.Signal, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+signalSelectCols+` FROM signals
		 WHERE condition_id = $1 AND direction = $2
		   AND status NOT IN ('CLOSED', 'RESOLVED')`,
		conditionID, direction)

	sig, err := scanSignalRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Signal{}, domain.ErrNotFound
		}
		return domain.Signal{}, fmt.Errorf("postgres: get open signal %s/%s: %w", conditionID, direction, err)
	}
	return sig, nil
}

// ListOpen returns all non-terminal signals.
func (s *SignalStore) ListOpen(ctx context.Context) ([]domain.Signal, error) {
	return s.listWhere(ctx, `status NOT IN ('CLOSED', 'RESOLVED')`)
}

// ListUnresolved returns all signals that have not been resolved yet,
// CLOSED ones included.
func (s *SignalStore) ListUnresolved(ctx context.Context) ([]domain.Signal, error) {
	return s.listWhere(ctx, `status != 'RESOLVED'`)
}

// ListUnalerted returns live signals whose creation alert is still pending.
func (s *SignalStore) ListUnalerted(ctx context.Context) ([]domain.Signal, error) {
	return s.listWhere(ctx, `alerted = FALSE AND status NOT IN ('CLOSED', 'RESOLVED')`)
}

// ListUnalertedResolutions returns resolved signals whose resolution alert
// is still pending.
func (s *SignalStore) ListUnalertedResolutions(ctx context.Context) ([]domain.Signal, error) {
	return s.listWhere(ctx, `status = 'RESOLVED' AND resolution_alerted = FALSE`)
}

func (s *SignalStore) listWhere(ctx context.Context, where string) ([]domain.Signal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+signalSelectCols+` FROM signals WHERE `+where+` ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list signals: %w", err)
	}
	defer rows.Close()

	signals, err := scanSignalRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan signals: %w", err)
	}
	return signals, nil
}

// List returns signals newest first with tier/status/wallet filtering and
// pagination. Wallet filtering matches against the frozen contributions.
func (s *SignalStore) List(ctx context.Context, f domain.SignalFilter) ([]domain.Signal, error) {
	query := `SELECT ` + signalSelectCols + ` FROM signals WHERE 1=1`
	args := []any{}
	argIdx := 1

	if f.Tier != 0 {
		query += fmt.Sprintf(" AND tier = $%d", argIdx)
		args = append(args, f.Tier)
		argIdx++
	}
	if f.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(f.Status))
		argIdx++
	}
	if f.Wallet != "" {
		query += fmt.Sprintf(" AND contributions @> $%d", argIdx)
		member, err := json.Marshal([]map[string]string{{"wallet": f.Wallet}})
		if err != nil {
			return nil, fmt.Errorf("postgres: marshal wallet filter: %w", err)
		}
		args = append(args, member)
		argIdx++
	}
	if f.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *f.Since)
		argIdx++
	}
	if f.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *f.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

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
		return nil, fmt.Errorf("postgres: list signals: %w", err)
	}
	defer rows.Close()

	signals, err := scanSignalRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan signals: %w", err)
	}
	return signals, nil
}

// MarkAlerted flags the creation alert as sent.
func (s *SignalStore) MarkAlerted(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE signals SET alerted = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: mark alerted %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkResolutionAlerted flags the resolution alert as sent.
func (s *SignalStore) MarkResolutionAlerted(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE signals SET resolution_alerted = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: mark resolution alerted %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}

// Compile-time interface check.
var _ domain.SignalStore = (*SignalStore)(nil)
