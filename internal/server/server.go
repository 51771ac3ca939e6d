// Package server assembles the HTTP API for the order desk.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rioporto/orderdesk/internal/domain"
	"github.com/rioporto/orderdesk/internal/server/handler"
	"github.com/rioporto/orderdesk/internal/server/middleware"
	"github.com/rioporto/orderdesk/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit caps requests per client IP per RateWindow. Zero disables
	// the middleware.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health      *handler.HealthHandler
	Instruments *handler.InstrumentHandler
	Markets     *handler.MarketHandler
	Accounts    *handler.AccountHandler
	Tickets     *handler.TicketHandler
	Catalog     *handler.CatalogHandler
	Audit       *handler.AuditHandler
}

// Server is the headless HTTP + websocket API server for the order desk.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (rate limit, auth, logging, CORS) and attaches the
// websocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check. Exempt from auth and rate limiting inside the
	// respective middleware so probes keep working.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Instrument catalog.
	mux.HandleFunc("GET /api/instruments", handlers.Instruments.ListInstruments)
	mux.HandleFunc("GET /api/instruments/{symbol}", handlers.Instruments.GetInstrument)

	// Market data. The literal snapshots route wins over the {symbol}
	// wildcard in the Go 1.22 mux.
	mux.HandleFunc("GET /api/markets/snapshots", handlers.Markets.GetSnapshots)
	mux.HandleFunc("GET /api/markets/{symbol}/snapshot", handlers.Markets.GetSnapshot)
	mux.HandleFunc("GET /api/markets/{symbol}/quote", handlers.Markets.GetQuote)

	// Account balances.
	mux.HandleFunc("GET /api/accounts/{id}/balances", handlers.Accounts.GetBalances)
	mux.HandleFunc("PUT /api/accounts/{id}/balances/{asset}", handlers.Accounts.SetBalance)

	// Ticket engine.
	mux.HandleFunc("POST /api/tickets/evaluate", handlers.Tickets.Evaluate)
	mux.HandleFunc("POST /api/tickets/submit", handlers.Tickets.Submit)
	mux.HandleFunc("DELETE /api/orders/{id}", handlers.Tickets.CancelOrder)

	// Catalog import trigger.
	mux.HandleFunc("POST /api/catalog/import", handlers.Catalog.TriggerImport)

	// Audit trail.
	mux.HandleFunc("GET /api/audit", handlers.Audit.ListAudit)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	// Apply auth middleware (skips if APIKey is empty).
	h = middleware.Auth(cfg.APIKey)(h)

	// Apply per-IP rate limiting when configured.
	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window == 0 {
			window = time.Second
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
	h = corsMiddleware(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// corsMiddleware returns middleware that sets CORS headers for the allowed
// origins. If no origins are specified, it defaults to allowing all origins.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				allowed := len(allowedOrigins) == 0 // allow all if none specified
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}

				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			// Handle preflight requests.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
