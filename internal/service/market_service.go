package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rioporto/orderdesk/internal/domain"
	"github.com/rioporto/orderdesk/internal/ticket"
)

// snapshotMaxAge bounds how old a cached snapshot may be before it is
// reported as stale.
const snapshotMaxAge = 2 * time.Minute

// MarketService serves market snapshots and price suggestions.
type MarketService struct {
	instruments domain.InstrumentStore
	snapshots   domain.SnapshotCache
	logger      *slog.Logger
}

// NewMarketService creates a MarketService.
func NewMarketService(instruments domain.InstrumentStore, snapshots domain.SnapshotCache, logger *slog.Logger) *MarketService {
	return &MarketService{
		instruments: instruments,
		snapshots:   snapshots,
		logger:      logger,
	}
}

// Snapshot returns the latest snapshot for a catalogued symbol. It returns
// domain.ErrStaleSnapshot (with the snapshot still populated) when the
// cached data is older than two minutes.
func (s *MarketService) Snapshot(ctx context.Context, symbol string) (domain.MarketSnapshot, error) {
	if _, err := s.instruments.GetBySymbol(ctx, symbol); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("market_service: instrument %q: %w", symbol, err)
	}

	snap, err := s.snapshots.Get(ctx, symbol)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("market_service: snapshot %q: %w", symbol, err)
	}

	if !snap.UpdatedAt.IsZero() && time.Since(snap.UpdatedAt) > snapshotMaxAge {
		return snap, fmt.Errorf("market_service: snapshot %q: %w", symbol, domain.ErrStaleSnapshot)
	}
	return snap, nil
}

// Snapshots returns the latest snapshots for a batch of symbols in one cache
// round trip. Symbols with no cached data are simply absent from the result;
// the dashboard grid renders a placeholder for those rather than failing the
// whole refresh.
func (s *MarketService) Snapshots(ctx context.Context, symbols []string) (map[string]domain.MarketSnapshot, error) {
	snaps, err := s.snapshots.GetMany(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("market_service: snapshots: %w", err)
	}
	return snaps, nil
}

// SuggestPrice returns a quick-fill price for the given side and quote mode,
// derived from the latest snapshot. Staleness is not enforced here: a quick
// fill from slightly old data is still validated at evaluation time.
func (s *MarketService) SuggestPrice(ctx context.Context, symbol string, side domain.Side, mode ticket.QuoteMode) (decimal.Decimal, error) {
	snap, err := s.snapshots.Get(ctx, symbol)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("market_service: snapshot %q: %w", symbol, err)
	}
	return ticket.SuggestPrice(side, snap, mode), nil
}
