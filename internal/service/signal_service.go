package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polyradar/internal/domain"
)

// SignalService exposes read access to detected signals for the API layer.
// Signals are written exclusively by the detection pipeline; the service
// never mutates them.
type SignalService struct {
	signals domain.SignalStore
	logger  *slog.Logger
}

// NewSignalService creates a SignalService backed by the given store.
func NewSignalService(signals domain.SignalStore, logger *slog.Logger) *SignalService {
	return &SignalService{
		signals: signals,
		logger:  logger,
	}
}

// Get retrieves a single signal by ID, contributions included.
func (s *SignalService) Get(ctx context.Context, id string) (domain.Signal, error) {
	sig, err := s.signals.GetByID(ctx, id)
	if err != nil {
		return domain.Signal{}, fmt.Errorf("signal_service: get %q: %w", id, err)
	}
	return sig, nil
}

// List returns signals newest first, filtered by tier, status, and
// contributing wallet.
func (s *SignalService) List(ctx context.Context, f domain.SignalFilter) ([]domain.Signal, error) {
	signals, err := s.signals.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("signal_service: list: %w", err)
	}
	return signals, nil
}

// ListOpen returns every non-terminal signal.
func (s *SignalService) ListOpen(ctx context.Context) ([]domain.Signal, error) {
	signals, err := s.signals.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("signal_service: list open: %w", err)
	}
	return signals, nil
}
