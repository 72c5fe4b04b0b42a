// Package transport performs the network call behind a request.
//
// A Transport is invoked once per deduplicated request. It either returns a
// Reply carrying the decoded payload or an *Error carrying the failure status,
// the transport handle and the error payload.
package transport

import (
	"context"
	"errors"
	"fmt"
)

// Status texts reported by transports.
const (
	StatusSuccess     = "success"
	StatusNotModified = "notmodified"
	StatusError       = "error"
	StatusTimeout     = "timeout"
	StatusParserError = "parsererror"
	StatusBlocked     = "blocked"
)

// DefaultDataType is used when a request does not name a data type.
const DefaultDataType = "json"

// ErrorClass represents a classification of transport errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents requests refused because of the error budget.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents payloads that could not be decoded.
	ErrorClassDecode ErrorClass = "decode"
)

// Request describes one outbound call.
type Request struct {
	Method   string
	URL      string
	Params   Params
	DataType string
}

// Reply is a successful transport result.
type Reply struct {
	// Body is the decoded payload.
	Body any

	// Status is the success status text.
	Status string

	// Handle is the transport-specific handle (for HTTP, the *http.Response).
	Handle any
}

// Transport performs requests.
type Transport interface {
	// Do performs req. On failure it returns an *Error.
	Do(ctx context.Context, req Request) (*Reply, error)
}

// Func adapts a function to the Transport interface.
type Func func(ctx context.Context, req Request) (*Reply, error)

// Do implements Transport.
func (f Func) Do(ctx context.Context, req Request) (*Reply, error) {
	return f(ctx, req)
}

// Error is a failed transport call.
type Error struct {
	// Status is the failure status text (error, timeout, parsererror, blocked).
	Status string

	// StatusCode is the HTTP status code, 0 when no response was received.
	StatusCode int

	// Class classifies the failure.
	Class ErrorClass

	// Handle is the transport-specific handle, nil when no response was received.
	Handle any

	// Payload is the error payload: the decoded error body or a description.
	Payload any

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport %s (%s, status %d): %v",
			e.Status, e.Class, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport %s (%s, status %d): %v",
		e.Status, e.Class, e.StatusCode, e.Payload)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// AsError returns err as an *Error, wrapping foreign errors so callers always
// see a status text.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var terr *Error
	if errors.As(err, &terr) {
		return terr
	}
	return &Error{
		Status:  StatusError,
		Class:   ErrorClassNetwork,
		Payload: err.Error(),
		Err:     err,
	}
}
