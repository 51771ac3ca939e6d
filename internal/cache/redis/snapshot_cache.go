package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rioporto/orderdesk/internal/domain"
)

const snapshotTTL = 5 * time.Minute

// SnapshotCache implements domain.SnapshotCache using Redis hashes.
// Each symbol's snapshot is stored at key "snapshot:{symbol}" with fields
// "last", "bid", "ask" (decimal strings, empty for absent book sides) and
// "ts" (Unix nanosecond timestamp).
type SnapshotCache struct {
	rdb *redis.Client
}

// NewSnapshotCache creates a SnapshotCache backed by the given Client.
func NewSnapshotCache(c *Client) *SnapshotCache {
	return &SnapshotCache{rdb: c.Underlying()}
}

var _ domain.SnapshotCache = (*SnapshotCache)(nil)

func snapshotKey(symbol string) string {
	return "snapshot:" + symbol
}

// Set stores the latest market snapshot for a symbol with a 5-minute TTL.
func (sc *SnapshotCache) Set(ctx context.Context, snap domain.MarketSnapshot) error {
	key := snapshotKey(snap.Symbol)
	ts := snap.UpdatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	fields := map[string]interface{}{
		"last": decimalField(snap.LastPrice),
		"bid":  decimalField(snap.BestBid),
		"ask":  decimalField(snap.BestAsk),
		"ts":   strconv.FormatInt(ts.UnixNano(), 10),
	}

	pipe := sc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, snapshotTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", snap.Symbol, err)
	}
	return nil
}

// Get retrieves the latest snapshot for a symbol.
// It returns domain.ErrNotFound when the key does not exist.
func (sc *SnapshotCache) Get(ctx context.Context, symbol string) (domain.MarketSnapshot, error) {
	vals, err := sc.rdb.HGetAll(ctx, snapshotKey(symbol)).Result()
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("redis: get snapshot %s: %w", symbol, err)
	}
	if len(vals) == 0 {
		return domain.MarketSnapshot{}, domain.ErrNotFound
	}
	snap, err := parseSnapshot(symbol, vals)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("redis: parse snapshot %s: %w", symbol, err)
	}
	return snap, nil
}

// GetMany retrieves snapshots for multiple symbols using a pipeline.
// Symbols whose keys do not exist are silently omitted from the result map.
func (sc *SnapshotCache) GetMany(ctx context.Context, symbols []string) (map[string]domain.MarketSnapshot, error) {
	if len(symbols) == 0 {
		return map[string]domain.MarketSnapshot{}, nil
	}

	pipe := sc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(symbols))
	for _, sym := range symbols {
		cmds[sym] = pipe.HGetAll(ctx, snapshotKey(sym))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get snapshots pipeline: %w", err)
	}

	result := make(map[string]domain.MarketSnapshot, len(symbols))
	for sym, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		snap, err := parseSnapshot(sym, vals)
		if err != nil {
			continue
		}
		result[sym] = snap
	}
	return result, nil
}

func decimalField(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func parseSnapshot(symbol string, vals map[string]string) (domain.MarketSnapshot, error) {
	snap := domain.MarketSnapshot{Symbol: symbol}

	var err error
	if snap.LastPrice, err = parseDecimalField(vals["last"]); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("last: %w", err)
	}
	if snap.BestBid, err = parseDecimalField(vals["bid"]); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("bid: %w", err)
	}
	if snap.BestAsk, err = parseDecimalField(vals["ask"]); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("ask: %w", err)
	}

	if ts := vals["ts"]; ts != "" {
		nanos, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return domain.MarketSnapshot{}, fmt.Errorf("ts: %w", err)
		}
		snap.UpdatedAt = time.Unix(0, nanos).UTC()
	}
	return snap, nil
}

func parseDecimalField(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Decimal{}, nil
	}
	return decimal.NewFromString(s)
}
