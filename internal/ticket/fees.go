package ticket

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rioporto/orderdesk/internal/domain"
)

// FeeSchedule holds the maker and taker fee rates as fractions (0.001 is
// 0.1%). Market orders cross the spread and pay the taker rate; limit and
// stop orders rest on the book and pay the maker rate.
type FeeSchedule struct {
	Maker decimal.Decimal
	Taker decimal.Decimal
}

// Validate checks that both rates are in [0, 1).
func (f FeeSchedule) Validate() error {
	for _, rate := range []decimal.Decimal{f.Maker, f.Taker} {
		if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return fmt.Errorf("ticket: fee rate %s outside [0,1): %w", rate, domain.ErrInvalidFeeRate)
		}
	}
	return nil
}

// RateFor returns the fee rate a given order kind pays.
func (f FeeSchedule) RateFor(kind domain.OrderKind) decimal.Decimal {
	if kind == domain.OrderKindMarket {
		return f.Taker
	}
	return f.Maker
}

// Totals is the fee math for one candidate order.
type Totals struct {
	Gross decimal.Decimal
	Fee   decimal.Decimal
	Net   decimal.Decimal
}

// ComputeTotals derives gross total, fee, and net total for a candidate
// order. The fee is added to a buyer's cost and subtracted from a seller's
// proceeds; that asymmetry is the economic meaning of "net total" and must
// not be flattened. No rounding is applied here: display rounding is the
// caller's concern.
func ComputeTotals(quantity, effectivePrice, feeRate decimal.Decimal, side domain.Side) (Totals, error) {
	if feeRate.IsNegative() || feeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Totals{}, fmt.Errorf("ticket: fee rate %s outside [0,1): %w", feeRate, domain.ErrInvalidFeeRate)
	}

	gross := quantity.Mul(effectivePrice)
	fee := gross.Mul(feeRate)

	net := gross.Add(fee)
	if side == domain.SideSell {
		net = gross.Sub(fee)
	}

	return Totals{Gross: gross, Fee: fee, Net: net}, nil
}
