package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rioporto/orderdesk/internal/catalog"
)

// CatalogImporter runs one import pass over the incoming catalog dumps.
type CatalogImporter interface {
	Run(ctx context.Context) (catalog.Result, error)
}

// CatalogHandler triggers on-demand catalog imports.
type CatalogHandler struct {
	importer CatalogImporter
	logger   *slog.Logger
}

// NewCatalogHandler creates a CatalogHandler.
func NewCatalogHandler(importer CatalogImporter, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		importer: importer,
		logger:   logHandler(logger, "catalog"),
	}
}

// TriggerImport runs a single catalog import pass and reports the outcome.
// POST /api/catalog/import
func (h *CatalogHandler) TriggerImport(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog import not configured")
		return
	}

	res, err := h.importer.Run(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "catalog import failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "catalog import failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"files":       res.Files,
		"instruments": res.Instruments,
		"skipped":     res.Skipped,
	})
}
