package handler

import (
	"log/slog"
	"net/http"

	"github.com/rioporto/orderdesk/internal/domain"
	"github.com/rioporto/orderdesk/internal/service"
)

// AuditHandler serves the audit trail endpoint used by the operations view.
type AuditHandler struct {
	audits *service.AuditService
	logger *slog.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(audits *service.AuditService, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{
		audits: audits,
		logger: logHandler(logger, "audit"),
	}
}

// ListAudit returns recent audit entries, newest first.
// GET /api/audit?limit=50&offset=0
func (h *AuditHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	entries, err := h.audits.Recent(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list audit failed", slog.String("error", err.Error()))
		writeError(w, statusFromError(err), "failed to list audit entries")
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}
