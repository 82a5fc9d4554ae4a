package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polyradar/internal/domain"
)

// TraderService exposes the tracked population to the API layer. Single-wallet
// lookups go through the Redis cache the watchlist builder keeps warm; list
// queries hit the store directly.
type TraderService struct {
	traders domain.TraderStore
	cache   domain.TraderCache
	changes domain.ChangeStore
	logger  *slog.Logger
}

// NewTraderService creates a TraderService with all required dependencies.
func NewTraderService(
	traders domain.TraderStore,
	cache domain.TraderCache,
	changes domain.ChangeStore,
	logger *slog.Logger,
) *TraderService {
	return &TraderService{
		traders: traders,
		cache:   cache,
		changes: changes,
		logger:  logger,
	}
}

// Get retrieves a trader by wallet, checking the cache first and falling
// back to the persistent store on a miss.
func (s *TraderService) Get(ctx context.Context, wallet string) (domain.Trader, error) {
	t, err := s.cache.Get(ctx, wallet)
	if err == nil {
		return t, nil
	}

	t, err = s.traders.GetByWallet(ctx, wallet)
	if err != nil {
		return domain.Trader{}, fmt.Errorf("trader_service: get %q: %w", wallet, err)
	}

	// Back-fill cache; log but do not fail on cache write errors.
	if cacheErr := s.cache.Set(ctx, t); cacheErr != nil {
		s.logger.WarnContext(ctx, "trader_service: cache set failed",
			slog.String("wallet", wallet),
			slog.String("error", cacheErr.Error()),
		)
	}

	return t, nil
}

// List returns traders filtered by type, highest score first.
func (s *TraderService) List(ctx context.Context, f domain.TraderFilter) ([]domain.Trader, error) {
	traders, err := s.traders.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("trader_service: list: %w", err)
	}
	return traders, nil
}

// Count returns the tracked population size.
func (s *TraderService) Count(ctx context.Context) (int64, error) {
	count, err := s.traders.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("trader_service: count: %w", err)
	}
	return count, nil
}

// RecentChanges returns a wallet's detected position changes, newest first.
func (s *TraderService) RecentChanges(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.PositionChange, error) {
	changes, err := s.changes.ListByWallet(ctx, wallet, opts)
	if err != nil {
		return nil, fmt.Errorf("trader_service: recent changes %q: %w", wallet, err)
	}
	return changes, nil
}
