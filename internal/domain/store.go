package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// InstrumentStore persists instrument reference data.
type InstrumentStore interface {
	Upsert(ctx context.Context, inst Instrument) error
	UpsertBatch(ctx context.Context, insts []Instrument) error
	GetBySymbol(ctx context.Context, symbol string) (Instrument, error)
	ListActive(ctx context.Context, opts ListOpts) ([]Instrument, error)
	Count(ctx context.Context) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log of service events (catalog
// imports, order submissions). It is not a trade-history store.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
