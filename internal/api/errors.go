package api

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrTimeout matches transport errors caused by the request timeout.
var ErrTimeout = errors.New("request timed out")

// TransportError is returned when no HTTP response was received.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the request failed because it ran out of time.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// Is lets errors.Is(err, ErrTimeout) match timed out requests.
func (e *TransportError) Is(target error) bool {
	return target == ErrTimeout && e.Timeout()
}

// StatusError is returned for responses with a 4xx or 5xx status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	// Message is the server supplied "message" or "detail", if any.
	Message string
	Body    []byte
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
