// Package service wires the ticket engine to stores, caches, and the venue
// gateway.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rioporto/orderdesk/internal/domain"
	"github.com/rioporto/orderdesk/internal/ticket"
)

// OrderChannel is the pub/sub channel order submissions are announced on.
const OrderChannel = "orders"

// defaultSubmitRateLimit caps ticket submissions per account per second when
// no explicit rate is configured.
const (
	defaultSubmitRateLimit = 10
	submitRateWindow       = time.Second
)

// TicketService evaluates order tickets against live market data and account
// balances, and submits accepted tickets to the venue.
type TicketService struct {
	instruments domain.InstrumentStore
	snapshots   domain.SnapshotCache
	balances    domain.BalanceCache
	limiter     domain.RateLimiter
	bus         domain.SignalBus
	audit       domain.AuditStore
	gateway     domain.OrderGateway
	fees        ticket.FeeSchedule
	submitLimit int
	logger      *slog.Logger
}

// NewTicketService creates a TicketService with all required dependencies.
func NewTicketService(
	instruments domain.InstrumentStore,
	snapshots domain.SnapshotCache,
	balances domain.BalanceCache,
	limiter domain.RateLimiter,
	bus domain.SignalBus,
	audit domain.AuditStore,
	fees ticket.FeeSchedule,
	logger *slog.Logger,
) *TicketService {
	return &TicketService{
		instruments: instruments,
		snapshots:   snapshots,
		balances:    balances,
		limiter:     limiter,
		bus:         bus,
		audit:       audit,
		fees:        fees,
		submitLimit: defaultSubmitRateLimit,
		logger:      logger,
	}
}

// WithSubmitRate overrides the per-account submission rate limit
// (submissions per second). Non-positive values keep the default.
func (s *TicketService) WithSubmitRate(perSecond int) *TicketService {
	if perSecond > 0 {
		s.submitLimit = perSecond
	}
	return s
}

// WithGateway attaches a venue gateway so Submit posts accepted orders
// upstream. Without a gateway, Submit works in local-only mode (useful for
// testing and paper trading).
func (s *TicketService) WithGateway(gw domain.OrderGateway) *TicketService {
	s.gateway = gw
	return s
}

// Evaluate loads the instrument, latest snapshot, and account balances, then
// runs the ticket engine. A missing snapshot is not an error: evaluation
// proceeds with an empty snapshot and reports a degenerate price warning.
func (s *TicketService) Evaluate(ctx context.Context, account, symbol string, req domain.TicketRequest) (domain.EvaluatedTicket, error) {
	inst, err := s.instruments.GetBySymbol(ctx, symbol)
	if err != nil {
		return domain.EvaluatedTicket{}, fmt.Errorf("ticket_service: load instrument: %w", err)
	}

	snap, err := s.snapshots.Get(ctx, symbol)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.EvaluatedTicket{}, fmt.Errorf("ticket_service: load snapshot: %w", err)
		}
		snap = domain.MarketSnapshot{Symbol: symbol}
	}

	bal, err := s.balanceSetFor(ctx, account, inst)
	if err != nil {
		return domain.EvaluatedTicket{}, fmt.Errorf("ticket_service: load balances: %w", err)
	}

	if req.FeeRate.IsZero() {
		req.FeeRate = s.fees.RateFor(req.Kind)
	}

	eval, err := ticket.Evaluate(req, inst, snap, bal)
	if err != nil {
		return domain.EvaluatedTicket{}, fmt.Errorf("ticket_service: evaluate: %w", err)
	}
	return eval, nil
}

// Submit re-evaluates the ticket against current data, refuses anything that
// fails validation, and posts the reduced payload to the venue. The attempt
// is rate limited per account, audited, and announced on the signal bus.
//
// On validation failure it returns the evaluated ticket alongside
// domain.ErrNotSubmittable so callers can surface the failure list.
func (s *TicketService) Submit(ctx context.Context, account, symbol string, req domain.TicketRequest) (domain.EvaluatedTicket, domain.SubmitResult, error) {
	allowed, err := s.limiter.Allow(ctx, "submit:"+account, s.submitLimit, submitRateWindow)
	if err != nil {
		return domain.EvaluatedTicket{}, domain.SubmitResult{}, fmt.Errorf("ticket_service: rate limiter: %w", err)
	}
	if !allowed {
		return domain.EvaluatedTicket{}, domain.SubmitResult{}, domain.ErrRateLimited
	}

	eval, err := s.Evaluate(ctx, account, symbol, req)
	if err != nil {
		return domain.EvaluatedTicket{}, domain.SubmitResult{}, err
	}
	if !eval.Submittable() {
		return eval, domain.SubmitResult{}, domain.ErrNotSubmittable
	}

	payload := eval.Payload()
	payload.ClientOrderID = uuid.NewString()

	result := domain.SubmitResult{
		Accepted:      true,
		ClientOrderID: payload.ClientOrderID,
		SubmittedAt:   time.Now().UTC(),
	}
	if s.gateway != nil {
		result, err = s.gateway.PostOrder(ctx, payload)
		if err != nil {
			s.auditSubmit(ctx, account, payload, result, err)
			return eval, result, fmt.Errorf("ticket_service: post order: %w", err)
		}
	}

	s.auditSubmit(ctx, account, payload, result, nil)
	s.announce(ctx, account, payload, result)

	return eval, result, nil
}

// ErrGatewayUnavailable reports an operation that needs a venue gateway on a
// desk running in local-only mode.
var ErrGatewayUnavailable = errors.New("service: venue gateway not configured")

// Cancel asks the venue to cancel a previously submitted order. Cancels share
// the per-account rate limit with submissions so a misbehaving client cannot
// hammer the venue through either path. The outcome is audited either way.
func (s *TicketService) Cancel(ctx context.Context, account, venueOrderID string) error {
	if s.gateway == nil {
		return ErrGatewayUnavailable
	}

	allowed, err := s.limiter.Allow(ctx, "cancel:"+account, s.submitLimit, submitRateWindow)
	if err != nil {
		return fmt.Errorf("ticket_service: rate limiter: %w", err)
	}
	if !allowed {
		return domain.ErrRateLimited
	}

	cancelErr := s.gateway.CancelOrder(ctx, venueOrderID)

	detail := map[string]any{
		"account":        account,
		"venue_order_id": venueOrderID,
		"cancelled":      cancelErr == nil,
	}
	if cancelErr != nil {
		detail["error"] = cancelErr.Error()
	}
	if err := s.audit.Log(ctx, "ticket.cancel", detail); err != nil {
		s.logger.WarnContext(ctx, "ticket_service: audit log failed",
			slog.String("venue_order_id", venueOrderID),
			slog.String("error", err.Error()),
		)
	}

	if cancelErr != nil {
		return fmt.Errorf("ticket_service: cancel order: %w", cancelErr)
	}
	return nil
}

func (s *TicketService) auditSubmit(ctx context.Context, account string, payload domain.OrderPayload, result domain.SubmitResult, submitErr error) {
	detail := map[string]any{
		"account":         account,
		"client_order_id": payload.ClientOrderID,
		"symbol":          payload.Symbol,
		"side":            string(payload.Side),
		"kind":            string(payload.Kind),
		"quantity":        payload.Quantity.String(),
		"accepted":        result.Accepted,
	}
	if result.VenueOrderID != "" {
		detail["venue_order_id"] = result.VenueOrderID
	}
	if submitErr != nil {
		detail["error"] = submitErr.Error()
	}

	if err := s.audit.Log(ctx, "ticket.submit", detail); err != nil {
		s.logger.WarnContext(ctx, "ticket_service: audit log failed",
			slog.String("client_order_id", payload.ClientOrderID),
			slog.String("error", err.Error()),
		)
		// Non-fatal: the submission already went through.
	}
}

func (s *TicketService) announce(ctx context.Context, account string, payload domain.OrderPayload, result domain.SubmitResult) {
	event := struct {
		Account string              `json:"account"`
		Order   domain.OrderPayload `json:"order"`
		Result  domain.SubmitResult `json:"result"`
	}{
		Account: account,
		Order:   payload,
		Result:  result,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, OrderChannel, data); err != nil {
		s.logger.DebugContext(ctx, "ticket_service: publish order event failed",
			slog.String("client_order_id", payload.ClientOrderID),
			slog.String("error", err.Error()),
		)
	}
}

// balanceSetFor resolves the base and quote balances for an account against
// an instrument. Unknown assets count as zero.
func (s *TicketService) balanceSetFor(ctx context.Context, account string, inst domain.Instrument) (domain.BalanceSet, error) {
	var bal domain.BalanceSet

	base, err := s.balances.GetBalance(ctx, account, inst.BaseAsset)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.BalanceSet{}, err
	}
	bal.BaseAvailable = base

	quote, err := s.balances.GetBalance(ctx, account, inst.QuoteAsset)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.BalanceSet{}, err
	}
	bal.QuoteAvailable = quote

	return bal, nil
}
