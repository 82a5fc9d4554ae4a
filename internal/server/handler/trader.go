package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polyradar/internal/domain"
)

// recentChangeCount caps how many recent changes are embedded in the
// single-trader response.
const recentChangeCount = 20

// TraderService defines the methods the trader handler requires from the
// service layer.
type TraderService interface {
	Get(ctx context.Context, wallet string) (domain.Trader, error)
	List(ctx context.Context, f domain.TraderFilter) ([]domain.Trader, error)
	Count(ctx context.Context) (int64, error)
	RecentChanges(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.PositionChange, error)
}

// TraderHandler serves watchlist-related HTTP endpoints.
type TraderHandler struct {
	traders TraderService
	logger  *slog.Logger
}

// NewTraderHandler creates a TraderHandler with the given service and logger.
func NewTraderHandler(traders TraderService, logger *slog.Logger) *TraderHandler {
	return &TraderHandler{
		traders: traders,
		logger:  logger,
	}
}

// listTradersResponse wraps the list endpoint output with metadata.
type listTradersResponse struct {
	Traders []domain.Trader `json:"traders"`
	Total   int64           `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// traderResponse is the single-trader view: scores plus recent activity.
type traderResponse struct {
	Trader        domain.Trader           `json:"trader"`
	RecentChanges []domain.PositionChange `json:"recent_changes"`
}

// ListTraders returns tracked traders, highest score first, with pagination.
// GET /api/traders?type=HUMAN&limit=50&offset=0
func (h *TraderHandler) ListTraders(w http.ResponseWriter, r *http.Request) {
	f := domain.TraderFilter{ListOpts: parseListOpts(r)}

	if v := r.URL.Query().Get("type"); v != "" {
		switch t := domain.TraderType(v); t {
		case domain.TraderTypeHuman, domain.TraderTypeAlgo, domain.TraderTypeMarketMaker:
			f.Type = t
		default:
			writeError(w, http.StatusBadRequest, "unknown trader type")
			return
		}
	}

	traders, err := h.traders.List(r.Context(), f)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list traders failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list traders")
		return
	}

	total, err := h.traders.Count(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: count traders failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to count traders")
		return
	}

	writeJSON(w, http.StatusOK, listTradersResponse{
		Traders: traders,
		Total:   total,
		Limit:   f.Limit,
		Offset:  f.Offset,
	})
}

// GetTrader returns a single trader with category sub-scores and recent
// position changes.
// GET /api/traders/{wallet}
func (h *TraderHandler) GetTrader(w http.ResponseWriter, r *http.Request) {
	wallet := pathParam(r, "wallet")
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "missing wallet")
		return
	}

	trader, err := h.traders.Get(r.Context(), wallet)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "trader not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get trader failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get trader")
		return
	}

	changes, err := h.traders.RecentChanges(r.Context(), wallet, domain.ListOpts{Limit: recentChangeCount})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: recent changes failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load recent changes")
		return
	}

	writeJSON(w, http.StatusOK, traderResponse{
		Trader:        trader,
		RecentChanges: changes,
	})
}
