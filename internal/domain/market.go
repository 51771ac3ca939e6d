package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketSnapshot is a point-in-time view of an instrument's market, supplied
// by the market-data collaborator. Snapshots are immutable; a fresh one is
// taken per evaluation.
type MarketSnapshot struct {
	Symbol    string          `json:"symbol"`
	LastPrice decimal.Decimal `json:"last_price"`
	BestBid   decimal.Decimal `json:"best_bid"` // zero means no bid available
	BestAsk   decimal.Decimal `json:"best_ask"` // zero means no ask available
	UpdatedAt time.Time       `json:"updated_at"`
}

// HasBook reports whether both sides of the book are present.
func (m MarketSnapshot) HasBook() bool {
	return m.BestBid.IsPositive() && m.BestAsk.IsPositive()
}

// Mid returns the bid/ask midpoint, or the last price when the book is
// one-sided or empty.
func (m MarketSnapshot) Mid() decimal.Decimal {
	if !m.HasBook() {
		return m.LastPrice
	}
	return m.BestBid.Add(m.BestAsk).Div(decimal.NewFromInt(2))
}
