package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rioporto/orderdesk/internal/domain"
)

// AuditService exposes the append-only audit trail to operators. Entries are
// written by the ticket and catalog paths; this service only reads them.
type AuditService struct {
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewAuditService creates an AuditService.
func NewAuditService(audit domain.AuditStore, logger *slog.Logger) *AuditService {
	return &AuditService{
		audit:  audit,
		logger: logger,
	}
}

// Recent returns audit entries newest first, paginated.
func (s *AuditService) Recent(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	entries, err := s.audit.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("audit_service: list: %w", err)
	}
	return entries, nil
}
