package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rioporto/orderdesk/internal/catalog"
	"github.com/rioporto/orderdesk/internal/domain"
	"github.com/rioporto/orderdesk/internal/feed"
	"github.com/rioporto/orderdesk/internal/notify"
	"github.com/rioporto/orderdesk/internal/server"
	"github.com/rioporto/orderdesk/internal/server/handler"
	"github.com/rioporto/orderdesk/internal/server/ws"
	"github.com/rioporto/orderdesk/internal/service"
	"github.com/rioporto/orderdesk/internal/ticket"
)

// shutdownTimeout bounds graceful HTTP server shutdown.
const shutdownTimeout = 10 * time.Second

// auditArchiveAge is how old audit entries must be before the archiver moves
// them to object storage.
const auditArchiveAge = 30 * 24 * time.Hour

// ServeMode runs the HTTP API and websocket hub.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startServer(ctx, g, deps, nil); err != nil {
		return err
	}
	a.startAlertListener(ctx, g, deps)
	return g.Wait()
}

// FeedMode runs the market-data feed only: it consumes venue tickers and
// keeps the snapshot cache and signal bus current.
func (a *App) FeedMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting feed mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startTickerFeed(ctx, g, deps, a.cfg.Feed.Symbols)
	return g.Wait()
}

// ImportMode runs the instrument catalog importer, either once or on a
// repeating interval, plus the audit-log archiver.
func (a *App) ImportMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting import mode")

	g, ctx := errgroup.WithContext(ctx)
	importer := a.newImporter(deps)
	if importer == nil {
		return fmt.Errorf("app: import mode requires object storage")
	}

	if a.cfg.Catalog.ImportInterval.Duration > 0 {
		g.Go(func() error {
			return importer.RunLoop(ctx, a.cfg.Catalog.ImportInterval.Duration)
		})
		a.startAuditArchiver(ctx, g, deps)
	} else {
		g.Go(func() error {
			res, err := importer.Run(ctx)
			if err != nil {
				return fmt.Errorf("app: catalog import: %w", err)
			}
			a.logger.InfoContext(ctx, "catalog import finished",
				slog.Int("files", res.Files),
				slog.Int("instruments", res.Instruments),
				slog.Int("skipped", res.Skipped),
			)
			return nil
		})
	}
	return g.Wait()
}

// FullMode runs everything: HTTP API, websocket hub, market-data feed,
// catalog importer, and audit archiver in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	importer := a.newImporter(deps)
	if err := a.startServer(ctx, g, deps, importer); err != nil {
		return err
	}
	a.startTickerFeed(ctx, g, deps, a.feedSymbols(ctx, deps))
	if a.cfg.Catalog.ImportInterval.Duration > 0 {
		g.Go(func() error {
			return importer.RunLoop(ctx, a.cfg.Catalog.ImportInterval.Duration)
		})
	}
	a.startAuditArchiver(ctx, g, deps)
	a.startAlertListener(ctx, g, deps)

	return g.Wait()
}

// startServer builds the services, handlers, and websocket hub and runs the
// HTTP server on the group. importer may be nil; the catalog endpoint then
// reports the importer as unavailable.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, importer *catalog.Importer) error {
	maker, taker, err := a.cfg.Fees.Rates()
	if err != nil {
		return fmt.Errorf("app: fee schedule: %w", err)
	}
	fees := ticket.FeeSchedule{Maker: maker, Taker: taker}

	ticketSvc := service.NewTicketService(
		deps.InstrumentStore, deps.SnapshotCache, deps.BalanceCache,
		deps.RateLimiter, deps.SignalBus, deps.AuditStore, fees, a.logger,
	).WithSubmitRate(a.cfg.Server.SubmitRatePerSec)
	if deps.Gateway != nil {
		ticketSvc = ticketSvc.WithGateway(deps.Gateway)
	}
	instrumentSvc := service.NewInstrumentService(deps.InstrumentStore, a.logger)
	marketSvc := service.NewMarketService(deps.InstrumentStore, deps.SnapshotCache, a.logger)
	accountSvc := service.NewAccountService(deps.BalanceCache, a.logger)
	auditSvc := service.NewAuditService(deps.AuditStore, a.logger)

	var catalogImporter handler.CatalogImporter
	if importer != nil {
		catalogImporter = importer
	}

	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(a.logger),
		Instruments: handler.NewInstrumentHandler(instrumentSvc, a.logger),
		Markets:     handler.NewMarketHandler(marketSvc, a.logger),
		Accounts:    handler.NewAccountHandler(accountSvc, a.logger),
		Tickets:     handler.NewTicketHandler(ticketSvc, a.logger),
		Catalog:     handler.NewCatalogHandler(catalogImporter, a.logger),
		Audit:       handler.NewAuditHandler(auditSvc, a.logger),
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now(),
	})
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimitPerMin,
		RateWindow:  time.Minute,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return hub.Run(ctx)
	})
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return nil
}

// startTickerFeed runs the websocket market-data feed for the given symbols.
func (a *App) startTickerFeed(ctx context.Context, g *errgroup.Group, deps *Dependencies, symbols []string) {
	tickerFeed := feed.NewTickerFeed(
		a.cfg.Feed.WsURL, symbols, deps.SnapshotCache, deps.SignalBus, a.logger,
	)
	g.Go(func() error {
		defer tickerFeed.Close()
		return tickerFeed.Run(ctx)
	})
}

// startAuditArchiver periodically moves old audit entries to object storage.
// It is a no-op when the blob archiver was not wired.
func (a *App) startAuditArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		return
	}
	g.Go(func() error {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				cutoff := time.Now().Add(-auditArchiveAge)
				n, err := deps.Archiver.ArchiveAuditLog(ctx, cutoff)
				if err != nil {
					a.logger.ErrorContext(ctx, "audit archive failed",
						slog.String("error", err.Error()),
					)
					continue
				}
				a.logger.InfoContext(ctx, "audit archive finished",
					slog.Int64("entries", n),
				)
			}
		}
	})
}

// startAlertListener forwards order announcements from the signal bus to the
// configured notification senders. It is a no-op when no sender is enabled.
func (a *App) startAlertListener(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Notifier == nil || !deps.Notifier.HasSenders() {
		return
	}
	listener := notify.NewListener(
		deps.SignalBus, deps.Notifier, []string{service.OrderChannel}, a.logger,
	)
	g.Go(func() error {
		return listener.Run(ctx)
	})
}

// newImporter builds the catalog importer from wired blob and store
// dependencies. Returns nil when object storage is not wired.
func (a *App) newImporter(deps *Dependencies) *catalog.Importer {
	if deps.BlobReader == nil || deps.BlobWriter == nil {
		return nil
	}
	return catalog.NewImporter(
		deps.BlobReader, deps.BlobWriter, deps.BlobDeleter,
		deps.InstrumentStore, deps.AuditStore, a.logger,
		a.cfg.Catalog.Prefix, a.cfg.Catalog.ArchivePrefix,
	)
}

// feedSymbols merges the configured feed symbols with every active instrument
// from the store, so full mode tracks newly imported instruments on restart.
func (a *App) feedSymbols(ctx context.Context, deps *Dependencies) []string {
	symbols := append([]string(nil), a.cfg.Feed.Symbols...)
	if deps.InstrumentStore == nil {
		return symbols
	}
	seen := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		seen[s] = true
	}
	insts, err := deps.InstrumentStore.ListActive(ctx, domain.ListOpts{Limit: 500})
	if err != nil {
		a.logger.WarnContext(ctx, "list active instruments for feed failed",
			slog.String("error", err.Error()),
		)
		return symbols
	}
	for _, inst := range insts {
		if !seen[inst.Symbol] {
			symbols = append(symbols, inst.Symbol)
			seen[inst.Symbol] = true
		}
	}
	return symbols
}
