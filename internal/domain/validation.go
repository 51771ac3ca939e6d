package domain

import "github.com/shopspring/decimal"

// ValidationCode identifies one validation rule.
type ValidationCode string

const (
	CodeMissingQuantity       ValidationCode = "missing_quantity"
	CodeBelowMinimumQuantity  ValidationCode = "below_minimum_quantity"
	CodeAboveMaximumQuantity  ValidationCode = "above_maximum_quantity"
	CodeMissingLimitPrice     ValidationCode = "missing_limit_price"
	CodeMissingStopPrice      ValidationCode = "missing_stop_price"
	CodePriceNotOnTick        ValidationCode = "price_not_on_tick"
	CodeInsufficientBalance   ValidationCode = "insufficient_balance"
	CodeUnknownTimeInForce    ValidationCode = "unknown_time_in_force"
	CodeDegenerateMarketPrice ValidationCode = "degenerate_market_price" // warning only
)

// Constraint names which cap produced an AboveMaximumQuantity failure, so the
// UI can phrase the message accordingly.
type Constraint string

const (
	ConstraintInstrument Constraint = "instrument"
	ConstraintBalance    Constraint = "balance"
)

// ValidationError describes one failed rule, attributed to the offending
// request field. Limit carries the boundary value the field violated, when
// one exists.
type ValidationError struct {
	Code       ValidationCode  `json:"code"`
	Field      string          `json:"field"`
	Constraint Constraint      `json:"constraint,omitempty"`
	Limit      decimal.Decimal `json:"limit,omitzero"`
	Message    string          `json:"message"`
}
