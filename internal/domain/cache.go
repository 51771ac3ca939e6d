package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotCache stores the latest market snapshot per symbol.
type SnapshotCache interface {
	Set(ctx context.Context, snap MarketSnapshot) error
	Get(ctx context.Context, symbol string) (MarketSnapshot, error)
	GetMany(ctx context.Context, symbols []string) (map[string]MarketSnapshot, error)
}

// BalanceCache stores per-account available balances by asset.
type BalanceCache interface {
	SetBalance(ctx context.Context, account, asset string, available decimal.Decimal) error
	GetBalance(ctx context.Context, account, asset string) (decimal.Decimal, error)
	GetBalances(ctx context.Context, account string) (map[string]decimal.Decimal, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus provides pub/sub fan-out for snapshot and order events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) (<-chan BusMessage, error)
}

// BusMessage is a single pub/sub delivery.
type BusMessage struct {
	Channel string
	Payload []byte
}
