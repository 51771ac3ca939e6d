package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rioporto/orderdesk/internal/domain"
)

// InstrumentService handles instrument lookup and catalog queries.
type InstrumentService struct {
	instruments domain.InstrumentStore
	logger      *slog.Logger
}

// NewInstrumentService creates an InstrumentService.
func NewInstrumentService(instruments domain.InstrumentStore, logger *slog.Logger) *InstrumentService {
	return &InstrumentService{
		instruments: instruments,
		logger:      logger,
	}
}

// Get retrieves a single instrument by symbol.
func (s *InstrumentService) Get(ctx context.Context, symbol string) (domain.Instrument, error) {
	inst, err := s.instruments.GetBySymbol(ctx, symbol)
	if err != nil {
		return domain.Instrument{}, fmt.Errorf("instrument_service: get %q: %w", symbol, err)
	}
	return inst, nil
}

// ListActive returns the active instruments, paginated.
func (s *InstrumentService) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Instrument, error) {
	insts, err := s.instruments.ListActive(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("instrument_service: list active: %w", err)
	}
	return insts, nil
}

// Count returns the total number of catalogued instruments.
func (s *InstrumentService) Count(ctx context.Context) (int64, error) {
	n, err := s.instruments.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("instrument_service: count: %w", err)
	}
	return n, nil
}
