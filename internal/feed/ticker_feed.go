package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/rioporto/orderdesk/internal/domain"
)

// SnapshotChannel is the pub/sub channel snapshot updates are fanned out on.
const SnapshotChannel = "snapshots"

// TickerFeed connects to the venue market data websocket, subscribes to
// tickers for the given symbols, writes each update to the snapshot cache,
// and publishes it on the signal bus. It reconnects on disconnect.
type TickerFeed struct {
	wsURL     string
	symbols   []string
	snapshots domain.SnapshotCache
	bus       domain.SignalBus
	logger    *slog.Logger
	closeOnce sync.Once
	done      chan struct{}
}

// NewTickerFeed creates a feed that will subscribe to the given symbols.
func NewTickerFeed(wsURL string, symbols []string, snapshots domain.SnapshotCache, bus domain.SignalBus, logger *slog.Logger) *TickerFeed {
	return &TickerFeed{
		wsURL:     wsURL,
		symbols:   symbols,
		snapshots: snapshots,
		bus:       bus,
		logger:    logger.With(slog.String("component", "ticker_feed")),
		done:      make(chan struct{}),
	}
}

// Run connects, subscribes to tickers for the configured symbols, and runs
// until ctx is cancelled. Reconnects with a fixed delay on disconnect.
func (f *TickerFeed) Run(ctx context.Context) error {
	if len(f.symbols) == 0 {
		f.logger.Info("no symbols to subscribe, exiting")
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		err := f.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("market data feed disconnected, reconnecting", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(2 * time.Second):
		}
	}
}

func (f *TickerFeed) runConnection(ctx context.Context) error {
	client := NewWSClient(f.wsURL)
	defer client.Close()

	client.OnTicker(func(snap domain.MarketSnapshot) {
		f.handleTicker(ctx, snap)
	})

	connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := client.Connect(connCtx)
	cancel()
	if err != nil {
		return err
	}

	if err := client.Subscribe(ctx, f.symbols); err != nil {
		return err
	}
	f.logger.Info("market data feed subscribed", slog.Int("symbols", len(f.symbols)))

	<-ctx.Done()
	return ctx.Err()
}

func (f *TickerFeed) handleTicker(ctx context.Context, snap domain.MarketSnapshot) {
	if err := f.snapshots.Set(ctx, snap); err != nil {
		f.logger.Error("cache snapshot failed",
			slog.String("symbol", snap.Symbol),
			slog.String("error", err.Error()),
		)
		return
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		f.logger.Error("marshal snapshot failed",
			slog.String("symbol", snap.Symbol),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := f.bus.Publish(ctx, SnapshotChannel, payload); err != nil {
		f.logger.Debug("publish snapshot failed",
			slog.String("symbol", snap.Symbol),
			slog.String("error", err.Error()),
		)
	}
}

// Close stops the feed.
func (f *TickerFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}
