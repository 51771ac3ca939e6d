package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rioporto/orderdesk/internal/domain"
	"github.com/rioporto/orderdesk/internal/service"
	"github.com/rioporto/orderdesk/internal/ticket"
)

// MarketHandler serves market snapshot and quote endpoints.
type MarketHandler struct {
	markets *service.MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets *service.MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logHandler(logger, "market"),
	}
}

// GetSnapshot returns the latest market snapshot for a symbol. Stale data is
// still returned, flagged with "stale": true.
// GET /api/markets/{symbol}/snapshot
func (h *MarketHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	symbol := pathParam(r, "symbol")

	snap, err := h.markets.Snapshot(r.Context(), symbol)
	stale := false
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrStaleSnapshot):
			stale = true
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "no market data for symbol")
			return
		default:
			h.logger.ErrorContext(r.Context(), "get snapshot failed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to get snapshot")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot": snap,
		"stale":    stale,
	})
}

// maxSnapshotBatch caps how many symbols one bulk snapshot request may name.
const maxSnapshotBatch = 100

// GetSnapshots returns snapshots for a comma-separated symbol list in one
// response. Symbols without cached data are omitted rather than erroring, so
// a dashboard grid can refresh every tile with a single request.
// GET /api/markets/snapshots?symbols=BTC-BRL,ETH-BRL
func (h *MarketHandler) GetSnapshots(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("symbols")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "symbols query parameter is required")
		return
	}

	var symbols []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) == 0 {
		writeError(w, http.StatusBadRequest, "symbols query parameter is required")
		return
	}
	if len(symbols) > maxSnapshotBatch {
		writeError(w, http.StatusBadRequest, "too many symbols requested")
		return
	}

	snaps, err := h.markets.Snapshots(r.Context(), symbols)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "bulk snapshot fetch failed",
			slog.Int("symbols", len(symbols)),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get snapshots")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"snapshots": snaps,
		"count":     len(snaps),
	})
}

// GetQuote returns a quick-fill price suggestion for the given side and mode.
// GET /api/markets/{symbol}/quote?side=buy&mode=best
func (h *MarketHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := pathParam(r, "symbol")
	q := r.URL.Query()

	side := domain.Side(q.Get("side"))
	if !side.Valid() {
		writeError(w, http.StatusBadRequest, "side must be buy or sell")
		return
	}

	mode := ticket.QuoteMode(q.Get("mode"))
	if mode == "" {
		mode = ticket.QuoteBest
	}
	if !mode.Valid() {
		writeError(w, http.StatusBadRequest, "mode must be best, market, or mid")
		return
	}

	price, err := h.markets.SuggestPrice(r.Context(), symbol, side, mode)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no market data for symbol")
			return
		}
		h.logger.ErrorContext(r.Context(), "suggest price failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to suggest price")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"side":   side,
		"mode":   mode,
		"price":  price,
	})
}
