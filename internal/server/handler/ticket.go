package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rioporto/orderdesk/internal/domain"
	"github.com/rioporto/orderdesk/internal/service"
)

// TicketHandler serves ticket evaluation and submission.
type TicketHandler struct {
	tickets *service.TicketService
	logger  *slog.Logger
}

// NewTicketHandler creates a TicketHandler.
func NewTicketHandler(tickets *service.TicketService, logger *slog.Logger) *TicketHandler {
	return &TicketHandler{
		tickets: tickets,
		logger:  logHandler(logger, "ticket"),
	}
}

// ticketEnvelope is the request body for evaluate and submit.
type ticketEnvelope struct {
	Account string               `json:"account"`
	Symbol  string               `json:"symbol"`
	Ticket  domain.TicketRequest `json:"ticket"`
}

func decodeEnvelope(w http.ResponseWriter, r *http.Request) (ticketEnvelope, bool) {
	var env ticketEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return env, false
	}
	if env.Account == "" || env.Symbol == "" {
		writeError(w, http.StatusBadRequest, "account and symbol are required")
		return env, false
	}
	return env, true
}

// Evaluate runs the ticket engine and always returns 200 for a well-formed
// request: validation failures are carried in the evaluated ticket's errors
// list, not in the HTTP status.
// POST /api/tickets/evaluate
func (h *TicketHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	env, ok := decodeEnvelope(w, r)
	if !ok {
		return
	}

	eval, err := h.tickets.Evaluate(r.Context(), env.Account, env.Symbol, env.Ticket)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "unknown symbol")
			return
		}
		h.logger.ErrorContext(r.Context(), "evaluate failed",
			slog.String("symbol", env.Symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to evaluate ticket")
		return
	}

	writeJSON(w, http.StatusOK, eval)
}

// Submit re-evaluates the ticket and posts it to the venue. A ticket that
// fails validation yields 422 with the failure list; an accepted order
// yields 201 with the venue result.
// POST /api/tickets/submit
func (h *TicketHandler) Submit(w http.ResponseWriter, r *http.Request) {
	env, ok := decodeEnvelope(w, r)
	if !ok {
		return
	}

	eval, result, err := h.tickets.Submit(r.Context(), env.Account, env.Symbol, env.Ticket)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotSubmittable):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  "ticket failed validation",
				"ticket": eval,
			})
		case errors.Is(err, domain.ErrRateLimited):
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "too many submissions")
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusBadRequest, "unknown symbol")
		case errors.Is(err, domain.ErrVenueRejected):
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":  "venue rejected order",
				"result": result,
			})
		default:
			h.logger.ErrorContext(r.Context(), "submit failed",
				slog.String("symbol", env.Symbol),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to submit ticket")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"ticket": eval,
		"result": result,
	})
}

// CancelOrder forwards a cancel request for a venue order. A successful
// cancel has no body to report.
// DELETE /api/orders/{id}?account=acct-1
func (h *TicketHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := pathParam(r, "id")
	account := r.URL.Query().Get("account")
	if account == "" {
		writeError(w, http.StatusBadRequest, "account query parameter is required")
		return
	}

	if err := h.tickets.Cancel(r.Context(), account, orderID); err != nil {
		switch {
		case errors.Is(err, service.ErrGatewayUnavailable):
			writeError(w, http.StatusServiceUnavailable, "no venue gateway configured")
		case errors.Is(err, domain.ErrRateLimited):
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "too many cancellations")
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, domain.ErrVenueRejected):
			writeError(w, http.StatusBadGateway, "venue refused cancellation")
		default:
			h.logger.ErrorContext(r.Context(), "cancel failed",
				slog.String("venue_order_id", orderID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to cancel order")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
