package ticket

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rioporto/orderdesk/internal/domain"
)

// EffectivePrice resolves the price used for sizing and fee math. Market
// orders cross the book, so a buy prices against the best ask and a sell
// against the best bid, falling back to the last trade when that side of the
// book is empty. Limit and stop orders use the user-supplied price; when it
// is still unset the last price stands in so the form can show a live
// estimate while the user types.
func EffectivePrice(req domain.TicketRequest, market domain.MarketSnapshot) decimal.Decimal {
	switch req.Kind {
	case domain.OrderKindLimit:
		if req.LimitPrice.IsPositive() {
			return req.LimitPrice
		}
	case domain.OrderKindStop:
		if req.StopPrice.IsPositive() {
			return req.StopPrice
		}
	default:
		if req.Side == domain.SideBuy && market.BestAsk.IsPositive() {
			return market.BestAsk
		}
		if req.Side == domain.SideSell && market.BestBid.IsPositive() {
			return market.BestBid
		}
	}
	return market.LastPrice
}

// Evaluate runs the full ticket pipeline: effective price resolution,
// quantity normalization, balance-constrained sizing, fee math, and
// validation. It is total for a well-formed instrument and fee rate: user
// mistakes come back inside EvaluatedTicket.Errors, never as an error
// return. The error return is reserved for configuration bugs (malformed
// instrument, fee rate outside [0,1), unknown side or kind).
//
// Evaluate performs no I/O and touches no shared state; concurrent calls
// need no locking.
func Evaluate(req domain.TicketRequest, inst domain.Instrument, market domain.MarketSnapshot, balances domain.BalanceSet) (domain.EvaluatedTicket, error) {
	if err := inst.Validate(); err != nil {
		return domain.EvaluatedTicket{}, err
	}
	if !req.Side.Valid() {
		return domain.EvaluatedTicket{}, fmt.Errorf("ticket: unknown side %q", req.Side)
	}
	if !req.Kind.Valid() {
		return domain.EvaluatedTicket{}, fmt.Errorf("ticket: unknown order kind %q", req.Kind)
	}

	effectivePrice := EffectivePrice(req, market)

	qty, err := NormalizeStep(req.Quantity, inst.StepSize)
	if err != nil {
		return domain.EvaluatedTicket{}, err
	}

	maxAllowed, degenerate, err := MaxQuantity(req.Side, balances, effectivePrice, inst)
	if err != nil {
		return domain.EvaluatedTicket{}, err
	}

	totals, err := ComputeTotals(qty, effectivePrice, req.FeeRate, req.Side)
	if err != nil {
		return domain.EvaluatedTicket{}, err
	}

	out := domain.EvaluatedTicket{
		Symbol:         inst.Symbol,
		Side:           req.Side,
		Kind:           req.Kind,
		TimeInForce:    req.TimeInForce,
		Quantity:       qty,
		EffectivePrice: effectivePrice,
		GrossTotal:     totals.Gross,
		Fee:            totals.Fee,
		NetTotal:       totals.Net,
		MaxAllowed:     maxAllowed,
		LimitPrice:     req.LimitPrice,
		StopPrice:      req.StopPrice,
		Errors:         collectErrors(req, inst, balances, qty, maxAllowed, totals),
	}

	if degenerate {
		out.Warnings = append(out.Warnings, domain.ValidationError{
			Code:    domain.CodeDegenerateMarketPrice,
			Field:   "effective_price",
			Message: fmt.Sprintf("cannot size against non-positive price %s", effectivePrice),
		})
	}

	return out, nil
}
