package client

import "github.com/Sternrassler/reqflow/pkg/transport"

// StatusParseError is the Response status used when a transform fails.
const StatusParseError = "parseError"

// Response is the outcome of a completed request. It is produced once and
// shared by every caller of the same request.
type Response struct {
	// Status is the transport's success status text, or StatusParseError.
	Status string

	// Handle is the transport handle (for HTTP, the *http.Response).
	Handle any

	// Body is the parsed payload. For a parse failure it holds the
	// transform's error.
	Body any
}

// IsParseError reports whether the transform failed for this response.
func (r *Response) IsParseError() bool {
	return r != nil && r.Status == StatusParseError
}

// Err returns the transform error of a parse failure, nil otherwise.
func (r *Response) Err() error {
	if !r.IsParseError() {
		return nil
	}
	err, _ := r.Body.(error)
	return err
}

// asResponse wraps a primed cache value that is not already a *Response.
func asResponse(v any) *Response {
	if resp, ok := v.(*Response); ok {
		return resp
	}
	return &Response{Status: transport.StatusSuccess, Body: v}
}
