package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polyradar/internal/service"
)

// DashboardService defines the methods the dashboard handler requires.
type DashboardService interface {
	Stats(ctx context.Context) (service.DashboardStats, error)
}

// DashboardHandler serves the dashboard summary endpoint.
type DashboardHandler struct {
	dashboard DashboardService
	logger    *slog.Logger
}

// NewDashboardHandler creates a DashboardHandler with the given service.
func NewDashboardHandler(dashboard DashboardService, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboard: dashboard,
		logger:    logger,
	}
}

// GetDashboard returns summary counts: active signals by tier, resolved P&L
// aggregates, and the tracked population size.
// GET /api/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboard.Stats(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: dashboard stats failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute dashboard stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
