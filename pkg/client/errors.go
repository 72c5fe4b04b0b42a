package client

import "errors"

// Common errors returned by the client.
var (
	// ErrNilTransport is returned by New when no transport is configured.
	ErrNilTransport = errors.New("transport is required")

	// ErrInvalidTTL is returned by New for a negative default TTL.
	ErrInvalidTTL = errors.New("default ttl must not be negative")
)
