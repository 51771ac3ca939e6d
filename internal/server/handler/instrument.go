package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rioporto/orderdesk/internal/domain"
	"github.com/rioporto/orderdesk/internal/service"
)

// InstrumentHandler serves the instrument catalog endpoints.
type InstrumentHandler struct {
	instruments *service.InstrumentService
	logger      *slog.Logger
}

// NewInstrumentHandler creates an InstrumentHandler.
func NewInstrumentHandler(instruments *service.InstrumentService, logger *slog.Logger) *InstrumentHandler {
	return &InstrumentHandler{
		instruments: instruments,
		logger:      logHandler(logger, "instrument"),
	}
}

// ListInstruments returns the active instruments, paginated.
// GET /api/instruments
func (h *InstrumentHandler) ListInstruments(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	insts, err := h.instruments.ListActive(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list instruments failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list instruments")
		return
	}
	if insts == nil {
		insts = []domain.Instrument{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"instruments": insts,
		"limit":       opts.Limit,
		"offset":      opts.Offset,
	})
}

// GetInstrument returns a single instrument by symbol.
// GET /api/instruments/{symbol}
func (h *InstrumentHandler) GetInstrument(w http.ResponseWriter, r *http.Request) {
	symbol := pathParam(r, "symbol")

	inst, err := h.instruments.Get(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "instrument not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get instrument failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get instrument")
		return
	}

	writeJSON(w, http.StatusOK, inst)
}
