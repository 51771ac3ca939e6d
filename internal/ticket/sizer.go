package ticket

import (
	"github.com/shopspring/decimal"

	"github.com/rioporto/orderdesk/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// MaxQuantity returns the largest quantity the current balance supports at
// the effective price, floored to the instrument step and capped at the
// instrument maximum. The second return value reports a degenerate
// (non-positive) effective price; sizing against one yields zero, and the
// caller decides whether to surface the condition as a warning.
func MaxQuantity(side domain.Side, balances domain.BalanceSet, effectivePrice decimal.Decimal, inst domain.Instrument) (decimal.Decimal, bool, error) {
	if !effectivePrice.IsPositive() {
		return decimal.Zero, true, nil
	}

	var raw decimal.Decimal
	switch side {
	case domain.SideBuy:
		// Count whole affordable steps instead of dividing first: the
		// division may not terminate, and the floor must stay exact.
		notionalPerStep := effectivePrice.Mul(inst.StepSize)
		if !notionalPerStep.IsPositive() {
			return decimal.Zero, false, domain.ErrInvalidInstrument
		}
		steps, _ := balances.QuoteAvailable.QuoRem(notionalPerStep, 0)
		raw = steps.Mul(inst.StepSize)
	default:
		var err error
		raw, err = NormalizeStep(balances.BaseAvailable, inst.StepSize)
		if err != nil {
			return decimal.Zero, false, err
		}
	}

	if inst.Bounded() && raw.GreaterThan(inst.MaxQuantity) {
		raw = inst.MaxQuantity
	}
	return raw, false, nil
}

// PercentageOf converts a percent-of-maximum request (the 25/50/75/100%
// shortcut buttons) into a concrete quantity. Percent outside [0,100] is
// clamped, not rejected.
func PercentageOf(maxQty, percent, step decimal.Decimal) (decimal.Decimal, error) {
	if percent.IsNegative() {
		percent = decimal.Zero
	}
	if percent.GreaterThan(hundred) {
		percent = hundred
	}
	// Shift(-2) divides by 100 without touching the coefficient, so the
	// value reaching the floor is exact. Div would round at the package's
	// division precision first.
	return NormalizeStep(maxQty.Mul(percent).Shift(-2), step)
}

// QuantityForNotional derives the quantity purchasable for a desired quote
// spend at the given price, floored to step. A non-positive price yields
// zero. This backs the total-field entry path of the order form, where the
// user types how much quote currency to spend rather than a quantity.
func QuantityForNotional(notional, price, step decimal.Decimal) (decimal.Decimal, error) {
	if !step.IsPositive() {
		return decimal.Zero, domain.ErrInvalidInstrument
	}
	if !price.IsPositive() || !notional.IsPositive() {
		return decimal.Zero, nil
	}
	notionalPerStep := price.Mul(step)
	steps, _ := notional.QuoRem(notionalPerStep, 0)
	return steps.Mul(step), nil
}
