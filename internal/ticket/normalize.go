// Package ticket implements the order ticket engine: pure, synchronous
// evaluation of a draft order against instrument constraints, a market
// snapshot, and available balances. Nothing in this package performs I/O, so
// Evaluate is safe to call on every keystroke of an order form.
package ticket

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rioporto/orderdesk/internal/domain"
)

// tickEpsilonScale tolerates tiny representation error in supplied prices:
// a price counts as on-tick when its remainder is within tick * 1e-9.
var tickEpsilonScale = decimal.New(1, -9)

// NormalizeStep rounds value down to the nearest non-negative multiple of
// step. Flooring (never rounding up) guarantees a normalized quantity can
// not overspend a balance or exceed the instrument precision. A non-positive
// step is a configuration bug and fails hard.
func NormalizeStep(value, step decimal.Decimal) (decimal.Decimal, error) {
	if !step.IsPositive() {
		return decimal.Zero, fmt.Errorf("ticket: step %s must be positive: %w", step, domain.ErrInvalidInstrument)
	}
	if !value.IsPositive() {
		return decimal.Zero, nil
	}
	// QuoRem with precision 0 gives the exact integer quotient and remainder,
	// so the floor is exact for any step, terminating or not.
	steps, _ := value.QuoRem(step, 0)
	return steps.Mul(step), nil
}

// OnTick reports whether price is an integer multiple of tick, within the
// epsilon tolerance. Tick must be positive; callers validate the instrument
// before asking.
func OnTick(price, tick decimal.Decimal) bool {
	if !tick.IsPositive() {
		return false
	}
	rem := price.Mod(tick)
	eps := tick.Mul(tickEpsilonScale)
	return rem.LessThanOrEqual(eps) || tick.Sub(rem).LessThanOrEqual(eps)
}
