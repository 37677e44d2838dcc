package model

import "errors"

var (
	// ErrInvalidBetFormat is returned for an empty prompt or a stake that is
	// not a positive finite number.
	ErrInvalidBetFormat = errors.New("bets: invalid bet format")

	// ErrBetNotFound is returned when an operation names an unknown bet.
	ErrBetNotFound = errors.New("bets: bet not found")

	// ErrBetResolved is returned for votes on a resolved bet when late
	// votes are disabled.
	ErrBetResolved = errors.New("bets: bet already resolved")

	ErrMalformedDate         = errors.New("bets: malformed date")
	ErrValidationUnavailable = errors.New("bets: validation unavailable")
	ErrLookupFailed          = errors.New("bets: event lookup failed")

	// ErrImplausibleEvent is returned when validation finds no matching game.
	ErrImplausibleEvent = errors.New("bets: no matching event")
)
