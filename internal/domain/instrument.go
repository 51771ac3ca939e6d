package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InstrumentStatus represents the lifecycle state of a tradeable pair.
type InstrumentStatus string

const (
	InstrumentStatusActive   InstrumentStatus = "active"
	InstrumentStatusHalted   InstrumentStatus = "halted"
	InstrumentStatusDelisted InstrumentStatus = "delisted"
)

// Instrument describes a tradeable pair (e.g. BTC/BRL) and its precision and
// size constraints. Prices must be integer multiples of TickSize, quantities
// integer multiples of StepSize.
type Instrument struct {
	Symbol      string           `json:"symbol"`
	BaseAsset   string           `json:"base_asset"`
	QuoteAsset  string           `json:"quote_asset"`
	TickSize    decimal.Decimal  `json:"tick_size"`
	StepSize    decimal.Decimal  `json:"step_size"`
	MinQuantity decimal.Decimal  `json:"min_quantity"`
	MaxQuantity decimal.Decimal  `json:"max_quantity"` // zero means unbounded
	Status      InstrumentStatus `json:"status"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Validate checks the instrument configuration. A failure here is a
// configuration bug on the caller side, not a user-input problem, so it is
// reported as a hard error wrapping ErrInvalidInstrument.
func (i Instrument) Validate() error {
	if i.Symbol == "" {
		return fmt.Errorf("instrument: empty symbol: %w", ErrInvalidInstrument)
	}
	if !i.TickSize.IsPositive() {
		return fmt.Errorf("instrument %s: tick size %s must be positive: %w", i.Symbol, i.TickSize, ErrInvalidInstrument)
	}
	if !i.StepSize.IsPositive() {
		return fmt.Errorf("instrument %s: step size %s must be positive: %w", i.Symbol, i.StepSize, ErrInvalidInstrument)
	}
	if i.MinQuantity.IsNegative() {
		return fmt.Errorf("instrument %s: negative min quantity %s: %w", i.Symbol, i.MinQuantity, ErrInvalidInstrument)
	}
	if i.Bounded() && i.MinQuantity.GreaterThan(i.MaxQuantity) {
		return fmt.Errorf("instrument %s: min quantity %s exceeds max %s: %w", i.Symbol, i.MinQuantity, i.MaxQuantity, ErrInvalidInstrument)
	}
	return nil
}

// Bounded reports whether the instrument caps order quantity.
func (i Instrument) Bounded() bool {
	return i.MaxQuantity.IsPositive()
}
