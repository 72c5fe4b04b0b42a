package client

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RequestOption configures a single request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	dataType   string
	ttl        time.Duration
	ttlSet     bool
	forceCache bool
}

// WithDataType sets the payload type the transport decodes ("json" by default).
func WithDataType(dataType string) RequestOption {
	return func(o *requestOptions) {
		o.dataType = dataType
	}
}

// WithTTL sets how long the response stays cached. A TTL <= 0 disables
// caching for the request.
func WithTTL(ttl time.Duration) RequestOption {
	return func(o *requestOptions) {
		o.ttl = ttl
		o.ttlSet = true
	}
}

// WithCache enables caching for a method that does not cache by default.
func WithCache() RequestOption {
	return func(o *requestOptions) {
		o.forceCache = true
	}
}

// cacheEnabled applies the caching rules: the method default unless
// WithCache was given, and never with an explicit non-positive TTL.
func (o requestOptions) cacheEnabled(method string) bool {
	if o.ttlSet && o.ttl <= 0 {
		return false
	}
	return o.forceCache || cachesByDefault(method)
}

// cachesByDefault reports whether method is cached without WithCache.
func cachesByDefault(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead:
		return true
	default:
		return false
	}
}

// ParseTTL parses a textual TTL given either as integer milliseconds ("5000")
// or as a Go duration ("5s"). It reports false for input that is not a
// positive duration; callers treat that as "do not cache".
func ParseTTL(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	var ttl time.Duration
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		ttl = time.Duration(ms) * time.Millisecond
	} else {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, false
		}
		ttl = d
	}

	if ttl <= 0 {
		return 0, false
	}
	return ttl, true
}
