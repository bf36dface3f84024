package status

import "errors"

var (
	ErrSelectionClosed   = errors.New("selection: event is not open for sale")
	ErrActiveOrderExists = errors.New("order: an active pending order already exists for this session")
	ErrEmptySelection    = errors.New("order: selection resolves to no line items")
	ErrInsufficientStock = errors.New("reservation: not enough tickets available")
	ErrInvalidTransition = errors.New("order: illegal status transition")
	ErrOrderExpired      = errors.New("order: hold window has expired")
	ErrConfirmInFlight   = errors.New("payment: confirmation already in progress")
	ErrStorageFault      = errors.New("storage: persistence unavailable")
	ErrIssuanceFault     = errors.New("ticket: issuance failed after payment")
)
