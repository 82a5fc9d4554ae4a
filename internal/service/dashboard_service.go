package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polyradar/internal/domain"
)

// DashboardStats is the summary snapshot served at /api/dashboard.
type DashboardStats struct {
	ActiveByTier   map[int]int `json:"active_by_tier"`
	ActiveTotal    int         `json:"active_total"`
	WeakeningTotal int         `json:"weakening_total"`
	TrackedTraders int64       `json:"tracked_traders"`

	ResolvedCount int     `json:"resolved_count"`
	ResolvedWins  int     `json:"resolved_wins"`
	HitRate       float64 `json:"hit_rate"`
	AvgPnLPercent float64 `json:"avg_pnl_percent"`
}

// DashboardService aggregates signal and population state into a single
// summary for the dashboard.
type DashboardService struct {
	signals domain.SignalStore
	traders domain.TraderStore
	logger  *slog.Logger
}

// NewDashboardService creates a DashboardService over the given stores.
func NewDashboardService(signals domain.SignalStore, traders domain.TraderStore, logger *slog.Logger) *DashboardService {
	return &DashboardService{
		signals: signals,
		traders: traders,
		logger:  logger,
	}
}

// Stats computes the current dashboard summary.
func (s *DashboardService) Stats(ctx context.Context) (DashboardStats, error) {
	stats := DashboardStats{ActiveByTier: map[int]int{}}

	open, err := s.signals.ListOpen(ctx)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("dashboard_service: list open: %w", err)
	}
	for _, sig := range open {
		switch sig.Status {
		case domain.SignalActive:
			stats.ActiveByTier[sig.Tier]++
			stats.ActiveTotal++
		case domain.SignalWeakening:
			stats.WeakeningTotal++
		}
	}

	resolved, err := s.signals.List(ctx, domain.SignalFilter{Status: domain.SignalResolved})
	if err != nil {
		return DashboardStats{}, fmt.Errorf("dashboard_service: list resolved: %w", err)
	}
	var pnlSum float64
	for _, sig := range resolved {
		if sig.PnLPercent == nil {
			continue
		}
		stats.ResolvedCount++
		pnlSum += *sig.PnLPercent
		if *sig.PnLPercent > 0 {
			stats.ResolvedWins++
		}
	}
	if stats.ResolvedCount > 0 {
		stats.HitRate = float64(stats.ResolvedWins) / float64(stats.ResolvedCount)
		stats.AvgPnLPercent = pnlSum / float64(stats.ResolvedCount)
	}

	count, err := s.traders.Count(ctx)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("dashboard_service: count traders: %w", err)
	}
	stats.TrackedTraders = count

	return stats, nil
}
