package parser

import (
	"errors"
	"fmt"
)

// ErrAmbiguous is matched by every *AmbiguousError.
var ErrAmbiguous = errors.New("multiple parsers matched")

// AmbiguousError reports that more than one rule matched a request in debug
// mode. It is a configuration fault, not a runtime condition.
type AmbiguousError struct {
	URL     string
	Method  string
	Matches int
}

// Error implements the error interface.
func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%d parsers matched the given url and method: url=%s, method=%s",
		e.Matches, e.URL, e.Method)
}

// Is lets errors.Is match ErrAmbiguous.
func (e *AmbiguousError) Is(target error) bool {
	return target == ErrAmbiguous
}
