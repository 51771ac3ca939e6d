package ticket

import (
	"github.com/shopspring/decimal"

	"github.com/rioporto/orderdesk/internal/domain"
)

// QuoteMode selects which book price a quick-fill suggestion uses.
type QuoteMode string

const (
	// QuoteBest joins the queue on the order's own side of the book.
	QuoteBest QuoteMode = "best"
	// QuoteMarket crosses the spread for immediate execution.
	QuoteMarket QuoteMode = "market"
	// QuoteMid splits the spread down the middle.
	QuoteMid QuoteMode = "mid"
)

// Valid reports whether the mode is one of the known values.
func (m QuoteMode) Valid() bool {
	return m == QuoteBest || m == QuoteMarket || m == QuoteMid
}

// SuggestPrice returns a limit-price suggestion for the quick-fill buttons
// next to the price field. Without a two-sided book every mode falls back to
// the last trade price.
func SuggestPrice(side domain.Side, market domain.MarketSnapshot, mode QuoteMode) decimal.Decimal {
	if !market.HasBook() {
		return market.LastPrice
	}
	switch mode {
	case QuoteBest:
		if side == domain.SideBuy {
			return market.BestBid
		}
		return market.BestAsk
	case QuoteMarket:
		if side == domain.SideBuy {
			return market.BestAsk
		}
		return market.BestBid
	case QuoteMid:
		return market.Mid()
	default:
		return market.LastPrice
	}
}
