package payment

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest          = errors.New("invalid request")
	ErrNotFound                = errors.New("not found")
	ErrUpstreamAuth            = errors.New("payment provider authentication failed")
	ErrPaymentInitiationFailed = errors.New("payment initiation failed")
)

// InitiationError is returned when the provider did not accept an STK push.
// Detail is what the provider said, suitable for showing to the caller.
type InitiationError struct {
	Detail string
	Cause  error
}

func (e *InitiationError) Error() string {
	return fmt.Sprintf("%v: %s", ErrPaymentInitiationFailed, e.Detail)
}

func (e *InitiationError) Unwrap() []error {
	return []error{ErrPaymentInitiationFailed, e.Cause}
}

// CallbackError is returned when a provider callback cannot be parsed.
type CallbackError struct {
	Reason string
	Cause  error
}

func (e *CallbackError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("callback: %s: %v", e.Reason, e.Cause)
	}
	return "callback: " + e.Reason
}

func (e *CallbackError) Unwrap() error { return e.Cause }

// RequestError is an ErrInvalidRequest whose message can be shown to the caller
type RequestError struct {
	Msg string
}

func (e *RequestError) Error() string { return e.Msg }

func (e *RequestError) Is(target error) bool { return target == ErrInvalidRequest }

func invalid(msg string) error {
	return &RequestError{Msg: msg}
}
