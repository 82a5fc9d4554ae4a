package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/polyradar/internal/domain"
)

// SignalService defines the methods the signal handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type SignalService interface {
	Get(ctx context.Context, id string) (domain.Signal, error)
	List(ctx context.Context, f domain.SignalFilter) ([]domain.Signal, error)
}

// SignalHandler serves signal-related HTTP endpoints.
type SignalHandler struct {
	signals SignalService
	logger  *slog.Logger
}

// NewSignalHandler creates a SignalHandler with the given service and logger.
func NewSignalHandler(signals SignalService, logger *slog.Logger) *SignalHandler {
	return &SignalHandler{
		signals: signals,
		logger:  logger,
	}
}

// listSignalsResponse wraps the list endpoint output with the applied filter.
type listSignalsResponse struct {
	Signals []domain.Signal `json:"signals"`
	Count   int             `json:"count"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListSignals returns signals newest first with filtering and pagination.
// GET /api/signals?tier=1&status=ACTIVE&wallet=0x...&limit=50&offset=0
func (h *SignalHandler) ListSignals(w http.ResponseWriter, r *http.Request) {
	f, err := parseSignalFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	signals, err := h.signals.List(r.Context(), f)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list signals failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}

	writeJSON(w, http.StatusOK, listSignalsResponse{
		Signals: signals,
		Count:   len(signals),
		Limit:   f.Limit,
		Offset:  f.Offset,
	})
}

// GetSignal returns a single signal by ID, contribution snapshots included.
// GET /api/signals/{id}
func (h *SignalHandler) GetSignal(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing signal id")
		return
	}

	sig, err := h.signals.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "signal not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get signal failed",
			slog.String("signal_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get signal")
		return
	}

	writeJSON(w, http.StatusOK, sig)
}

// parseSignalFilter extracts signal filter parameters from the query string.
func parseSignalFilter(r *http.Request) (domain.SignalFilter, error) {
	q := r.URL.Query()
	f := domain.SignalFilter{ListOpts: parseListOpts(r)}

	if v := q.Get("tier"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 3 {
			return domain.SignalFilter{}, errors.New("tier must be 1, 2, or 3")
		}
		f.Tier = n
	}
	if v := q.Get("status"); v != "" {
		switch s := domain.SignalStatus(v); s {
		case domain.SignalActive, domain.SignalWeakening, domain.SignalClosed, domain.SignalResolved:
			f.Status = s
		default:
			return domain.SignalFilter{}, errors.New("unknown status")
		}
	}
	f.Wallet = q.Get("wallet")

	return f, nil
}
