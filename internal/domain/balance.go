package domain

import "github.com/shopspring/decimal"

// BalanceSet holds the funds available to a single ticket: base asset for
// sells, quote asset for buys. Both amounts are non-negative.
type BalanceSet struct {
	BaseAvailable  decimal.Decimal `json:"base_available"`
	QuoteAvailable decimal.Decimal `json:"quote_available"`
}

// AvailableFor returns the balance that constrains an order on the given side.
func (b BalanceSet) AvailableFor(side Side) decimal.Decimal {
	if side == SideBuy {
		return b.QuoteAvailable
	}
	return b.BaseAvailable
}
