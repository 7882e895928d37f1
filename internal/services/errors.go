package services

import "errors"

var (
	// ErrInvalidInput marks a request the caller must fix before retrying.
	ErrInvalidInput = errors.New("invalid input")
	// ErrForbidden is returned when the caller's role or ownership does not allow the action.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition is returned when an order cannot move to the requested status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidPin is returned when a delivery confirmation carries the wrong PIN.
	ErrInvalidPin = errors.New("invalid delivery PIN")
	// ErrTooManyAttempts is returned when PIN attempts for an order are throttled.
	ErrTooManyAttempts = errors.New("too many PIN attempts")
	// ErrInvalidCredentials is returned on a failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
