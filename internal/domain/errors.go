package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrRateLimited       = errors.New("rate limited")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidInstrument = errors.New("invalid instrument configuration")
	ErrInvalidFeeRate    = errors.New("invalid fee rate")
	ErrStaleSnapshot     = errors.New("market snapshot too old")
	ErrVenueRejected     = errors.New("venue rejected order")
	ErrNotSubmittable    = errors.New("ticket not submittable")
	ErrFeedDisconnect    = errors.New("market feed disconnected")
)
