package mpesa

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TokenError is returned when an access token could not be obtained.
type TokenError struct {
	StatusCode int
	Body       string
	Cause      error
}

func (e *TokenError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("mpesa: token request failed: status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("mpesa: token request failed: %v", e.Cause)
}

func (e *TokenError) Unwrap() error { return e.Cause }

// ErrorKind classifies STK push failures so callers can decide whether to retry.
type ErrorKind string

const (
	KindTimeout    ErrorKind = "Timeout"
	KindHTTP       ErrorKind = "HTTPError"
	KindTransport  ErrorKind = "TransportError"
	KindUnexpected ErrorKind = "UnexpectedError"
)

// STKError describes a failed STK push. The push itself is never retried here.
type STKError struct {
	Kind       ErrorKind
	StatusCode int    // Set for KindHTTP
	Body       string // Provider response body, when there was one
	Cause      error
}

func (e *STKError) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("mpesa: stk push %s: status %d: %s", e.Kind, e.StatusCode, e.Body)
	default:
		if e.Body != "" {
			return fmt.Sprintf("mpesa: stk push %s: %v: %s", e.Kind, e.Cause, e.Body)
		}
		return fmt.Sprintf("mpesa: stk push %s: %v", e.Kind, e.Cause)
	}
}

func (e *STKError) Unwrap() error { return e.Cause }

// classifyTransportErr maps an error from http.Client.Do to a kind.
func classifyTransportErr(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindTransport
}
