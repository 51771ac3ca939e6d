package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side indicates whether this is a buy or sell.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid reports whether the side is one of the known values.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// OrderKind selects how the order prices itself.
type OrderKind string

const (
	OrderKindMarket OrderKind = "market"
	OrderKindLimit  OrderKind = "limit"
	OrderKindStop   OrderKind = "stop"
)

// Valid reports whether the kind is one of the known values.
func (k OrderKind) Valid() bool {
	return k == OrderKindMarket || k == OrderKindLimit || k == OrderKindStop
}

// TimeInForce indicates how long an order stays working at the venue.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC" // Good-Till-Cancelled
	TimeInForceIOC TimeInForce = "IOC" // Immediate-Or-Cancel
	TimeInForceFOK TimeInForce = "FOK" // Fill-Or-Kill
)

// Valid reports whether the time-in-force is one of the known values. An
// empty value is valid: it defaults to GTC at submission time.
func (t TimeInForce) Valid() bool {
	switch t {
	case "", TimeInForceGTC, TimeInForceIOC, TimeInForceFOK:
		return true
	default:
		return false
	}
}

// TicketRequest is the user-entered draft of an order. Decimal zero values
// mean "unset"; the validator reports missing required fields rather than
// guessing. FeeRate, when zero, is resolved from the configured fee schedule
// by the caller before evaluation.
type TicketRequest struct {
	Side        Side            `json:"side"`
	Kind        OrderKind       `json:"kind"`
	Quantity    decimal.Decimal `json:"quantity"`
	LimitPrice  decimal.Decimal `json:"limit_price"`
	StopPrice   decimal.Decimal `json:"stop_price"`
	TimeInForce TimeInForce     `json:"time_in_force"`
	FeeRate     decimal.Decimal `json:"fee_rate"`
}

// EvaluatedTicket is the engine's pure output: the derived economics of one
// candidate order plus every validation failure found. It is immutable once
// returned.
type EvaluatedTicket struct {
	Symbol         string          `json:"symbol"`
	Side           Side            `json:"side"`
	Kind           OrderKind       `json:"kind"`
	TimeInForce    TimeInForce     `json:"time_in_force"`
	Quantity       decimal.Decimal `json:"quantity"` // normalized to step size
	EffectivePrice decimal.Decimal `json:"effective_price"`
	GrossTotal     decimal.Decimal `json:"gross_total"`
	Fee            decimal.Decimal `json:"fee"`
	NetTotal       decimal.Decimal `json:"net_total"`
	MaxAllowed     decimal.Decimal `json:"max_allowed_quantity"`
	LimitPrice     decimal.Decimal `json:"limit_price,omitzero"`
	StopPrice      decimal.Decimal `json:"stop_price,omitzero"`

	Errors   []ValidationError `json:"errors"`
	Warnings []ValidationError `json:"warnings,omitempty"`
}

// Submittable reports whether the ticket passed every validation rule.
func (t EvaluatedTicket) Submittable() bool {
	return len(t.Errors) == 0
}

// Payload reduces a submittable ticket to the wire form the execution venue
// accepts. Prices irrelevant to the order kind are omitted.
func (t EvaluatedTicket) Payload() OrderPayload {
	p := OrderPayload{
		Symbol:      t.Symbol,
		Side:        t.Side,
		Kind:        t.Kind,
		Quantity:    t.Quantity,
		TimeInForce: t.TimeInForce,
	}
	if p.TimeInForce == "" {
		p.TimeInForce = TimeInForceGTC
	}
	switch t.Kind {
	case OrderKindLimit:
		p.LimitPrice = t.LimitPrice
	case OrderKindStop:
		p.StopPrice = t.StopPrice
	}
	return p
}

// OrderPayload is the reduced order form posted to the external execution
// venue once the user confirms a submittable ticket.
type OrderPayload struct {
	ClientOrderID string          `json:"client_order_id,omitempty"`
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side"`
	Kind          OrderKind       `json:"kind"`
	Quantity      decimal.Decimal `json:"quantity"`
	LimitPrice    decimal.Decimal `json:"limit_price,omitzero"`
	StopPrice     decimal.Decimal `json:"stop_price,omitzero"`
	TimeInForce   TimeInForce     `json:"time_in_force"`
}

// SubmitResult is the venue's answer to an order submission.
type SubmitResult struct {
	Accepted      bool      `json:"accepted"`
	VenueOrderID  string    `json:"venue_order_id,omitempty"`
	ClientOrderID string    `json:"client_order_id"`
	Message       string    `json:"message,omitempty"`
	SubmittedAt   time.Time `json:"submitted_at"`
}
