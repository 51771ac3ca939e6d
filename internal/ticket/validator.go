package ticket

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rioporto/orderdesk/internal/domain"
)

// Validate evaluates every applicable eligibility rule over a single request
// and returns ALL failures in a fixed order, so the caller can display each
// problem at once instead of revealing them one fix at a time. It never
// fails for well-formed-but-economically-invalid input; the error return
// covers only broken instrument or fee configuration.
func Validate(req domain.TicketRequest, inst domain.Instrument, market domain.MarketSnapshot, balances domain.BalanceSet) ([]domain.ValidationError, error) {
	if err := inst.Validate(); err != nil {
		return nil, err
	}

	effectivePrice := EffectivePrice(req, market)

	qty, err := NormalizeStep(req.Quantity, inst.StepSize)
	if err != nil {
		return nil, err
	}

	maxAllowed, _, err := MaxQuantity(req.Side, balances, effectivePrice, inst)
	if err != nil {
		return nil, err
	}

	totals, err := ComputeTotals(qty, effectivePrice, req.FeeRate, req.Side)
	if err != nil {
		return nil, err
	}

	return collectErrors(req, inst, balances, qty, maxAllowed, totals), nil
}

// collectErrors runs the rule list against an already-normalized quantity
// and precomputed totals. Rule order is fixed and every applicable rule is
// evaluated; there is no short-circuiting.
//
// A quantity that only overflows what the balance supports is reported as
// InsufficientBalance, not AboveMaximumQuantity: the two would otherwise
// always fire together on the same input, and the original form showed a
// single "saldo insuficiente" message for that case. AboveMaximumQuantity
// is reserved for the instrument's own cap.
func collectErrors(req domain.TicketRequest, inst domain.Instrument, balances domain.BalanceSet, qty, maxAllowed decimal.Decimal, totals Totals) []domain.ValidationError {
	var errs []domain.ValidationError

	hasQty := qty.IsPositive()

	// 1. Quantity must be present and positive.
	if !hasQty {
		errs = append(errs, domain.ValidationError{
			Code:    domain.CodeMissingQuantity,
			Field:   "quantity",
			Message: "quantity is required and must be positive",
		})
	}

	// 2. Instrument minimum.
	if hasQty && qty.LessThan(inst.MinQuantity) {
		errs = append(errs, domain.ValidationError{
			Code:    domain.CodeBelowMinimumQuantity,
			Field:   "quantity",
			Limit:   inst.MinQuantity,
			Message: fmt.Sprintf("quantity %s below instrument minimum %s", qty, inst.MinQuantity),
		})
	}

	// 3. Instrument maximum.
	if hasQty && inst.Bounded() && qty.GreaterThan(inst.MaxQuantity) {
		errs = append(errs, domain.ValidationError{
			Code:       domain.CodeAboveMaximumQuantity,
			Field:      "quantity",
			Constraint: domain.ConstraintInstrument,
			Limit:      inst.MaxQuantity,
			Message:    fmt.Sprintf("quantity %s above instrument maximum %s", qty, inst.MaxQuantity),
		})
	}

	// 4. Limit orders need a limit price.
	if req.Kind == domain.OrderKindLimit && !req.LimitPrice.IsPositive() {
		errs = append(errs, domain.ValidationError{
			Code:    domain.CodeMissingLimitPrice,
			Field:   "limit_price",
			Message: "limit orders require a limit price",
		})
	}

	// 5. Stop orders need a stop price.
	if req.Kind == domain.OrderKindStop && !req.StopPrice.IsPositive() {
		errs = append(errs, domain.ValidationError{
			Code:    domain.CodeMissingStopPrice,
			Field:   "stop_price",
			Message: "stop orders require a stop price",
		})
	}

	// 6. Supplied prices must sit on the tick grid.
	if req.LimitPrice.IsPositive() && !OnTick(req.LimitPrice, inst.TickSize) {
		errs = append(errs, priceOffTick("limit_price", req.LimitPrice, inst.TickSize))
	}
	if req.StopPrice.IsPositive() && !OnTick(req.StopPrice, inst.TickSize) {
		errs = append(errs, priceOffTick("stop_price", req.StopPrice, inst.TickSize))
	}

	// 7. The order must be affordable: net cost within the quote balance for
	// buys, quantity within the base balance for sells.
	if hasQty {
		switch req.Side {
		case domain.SideBuy:
			if totals.Net.GreaterThan(balances.QuoteAvailable) {
				errs = append(errs, domain.ValidationError{
					Code:       domain.CodeInsufficientBalance,
					Field:      "quantity",
					Constraint: domain.ConstraintBalance,
					Limit:      maxAllowed,
					Message:    fmt.Sprintf("net total %s exceeds available %s; max quantity %s", totals.Net, balances.QuoteAvailable, maxAllowed),
				})
			}
		case domain.SideSell:
			if qty.GreaterThan(balances.BaseAvailable) {
				errs = append(errs, domain.ValidationError{
					Code:       domain.CodeInsufficientBalance,
					Field:      "quantity",
					Constraint: domain.ConstraintBalance,
					Limit:      maxAllowed,
					Message:    fmt.Sprintf("quantity %s exceeds available %s", qty, balances.BaseAvailable),
				})
			}
		}
	}

	// 8. Time-in-force, when given, must be a known policy.
	if !req.TimeInForce.Valid() {
		errs = append(errs, domain.ValidationError{
			Code:    domain.CodeUnknownTimeInForce,
			Field:   "time_in_force",
			Message: fmt.Sprintf("unknown time in force %q", req.TimeInForce),
		})
	}

	return errs
}

func priceOffTick(field string, price, tick decimal.Decimal) domain.ValidationError {
	return domain.ValidationError{
		Code:    domain.CodePriceNotOnTick,
		Field:   field,
		Limit:   tick,
		Message: fmt.Sprintf("price %s is not a multiple of tick size %s", price, tick),
	}
}
