package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rioporto/orderdesk/internal/domain"
)

// InstrumentStore persists tradable instrument definitions.
type InstrumentStore struct {
	pool *pgxpool.Pool
}

// NewInstrumentStore creates an InstrumentStore backed by the given pool.
func NewInstrumentStore(pool *pgxpool.Pool) *InstrumentStore {
	return &InstrumentStore{pool: pool}
}

var _ domain.InstrumentStore = (*InstrumentStore)(nil)

const upsertInstrumentSQL = `
	INSERT INTO instruments (
		symbol, base_asset, quote_asset, tick_size, step_size,
		min_quantity, max_quantity, status, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (symbol) DO UPDATE SET
		base_asset   = EXCLUDED.base_asset,
		quote_asset  = EXCLUDED.quote_asset,
		tick_size    = EXCLUDED.tick_size,
		step_size    = EXCLUDED.step_size,
		min_quantity = EXCLUDED.min_quantity,
		max_quantity = EXCLUDED.max_quantity,
		status       = EXCLUDED.status,
		updated_at   = EXCLUDED.updated_at`

// Upsert inserts or replaces a single instrument definition.
func (s *InstrumentStore) Upsert(ctx context.Context, inst domain.Instrument) error {
	if err := inst.Validate(); err != nil {
		return err
	}
	if inst.UpdatedAt.IsZero() {
		inst.UpdatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, upsertInstrumentSQL,
		inst.Symbol, inst.BaseAsset, inst.QuoteAsset,
		inst.TickSize, inst.StepSize,
		inst.MinQuantity, inst.MaxQuantity,
		string(inst.Status), inst.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert instrument %s: %w", inst.Symbol, err)
	}
	return nil
}

// UpsertBatch inserts or replaces instruments in a single batched round trip.
func (s *InstrumentStore) UpsertBatch(ctx context.Context, insts []domain.Instrument) error {
	if len(insts) == 0 {
		return nil
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for i := range insts {
		inst := insts[i]
		if err := inst.Validate(); err != nil {
			return fmt.Errorf("instrument %s: %w", inst.Symbol, err)
		}
		if inst.UpdatedAt.IsZero() {
			inst.UpdatedAt = now
		}
		batch.Queue(upsertInstrumentSQL,
			inst.Symbol, inst.BaseAsset, inst.QuoteAsset,
			inst.TickSize, inst.StepSize,
			inst.MinQuantity, inst.MaxQuantity,
			string(inst.Status), inst.UpdatedAt,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range insts {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert instrument batch: %w", err)
		}
	}
	return nil
}

const selectInstrumentSQL = `
	SELECT symbol, base_asset, quote_asset, tick_size, step_size,
	       min_quantity, max_quantity, status, updated_at
	FROM instruments`

// GetBySymbol fetches a single instrument, returning domain.ErrNotFound if
// the symbol is unknown.
func (s *InstrumentStore) GetBySymbol(ctx context.Context, symbol string) (domain.Instrument, error) {
	row := s.pool.QueryRow(ctx, selectInstrumentSQL+" WHERE symbol = $1", symbol)

	inst, err := scanInstrument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Instrument{}, fmt.Errorf("instrument %s: %w", symbol, domain.ErrNotFound)
		}
		return domain.Instrument{}, fmt.Errorf("get instrument %s: %w", symbol, err)
	}
	return inst, nil
}

// ListActive returns active instruments ordered by symbol.
func (s *InstrumentStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Instrument, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		selectInstrumentSQL+" WHERE status = $1 ORDER BY symbol LIMIT $2 OFFSET $3",
		string(domain.InstrumentStatusActive), limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	defer rows.Close()

	var insts []domain.Instrument
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		insts = append(insts, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	return insts, nil
}

// Count returns the total number of stored instruments.
func (s *InstrumentStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM instruments").Scan(&n); err != nil {
		return 0, fmt.Errorf("count instruments: %w", err)
	}
	return n, nil
}

func scanInstrument(row pgx.Row) (domain.Instrument, error) {
	var (
		inst   domain.Instrument
		status string
	)
	err := row.Scan(
		&inst.Symbol, &inst.BaseAsset, &inst.QuoteAsset,
		&inst.TickSize, &inst.StepSize,
		&inst.MinQuantity, &inst.MaxQuantity,
		&status, &inst.UpdatedAt,
	)
	if err != nil {
		return domain.Instrument{}, err
	}
	inst.Status = domain.InstrumentStatus(status)
	return inst, nil
}
