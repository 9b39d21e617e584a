package mistral

import (
	"errors"
	"fmt"
)

// Sentinel errors for classified API failures.
var (
	ErrAuth         = errors.New("authentication failed")
	ErrRateLimited  = errors.New("rate limited")
	ErrFileTooLarge = errors.New("file too large")
	ErrService      = errors.New("service error")
)

// APIError carries the HTTP status and response body of a failed API call.
// It unwraps to one of the sentinel errors above so callers can classify
// with errors.Is.
type APIError struct {
	StatusCode int
	Body       string
	kind       error
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("mistral API error (%d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("mistral API error (%d)", e.StatusCode)
}

func (e *APIError) Unwrap() error { return e.kind }

// newAPIError classifies an HTTP status code into one of the sentinel kinds.
func newAPIError(status int, body string) *APIError {
	e := &APIError{StatusCode: status, Body: body}
	switch {
	case status == 401 || status == 403:
		e.kind = ErrAuth
	case status == 429:
		e.kind = ErrRateLimited
	case status == 413:
		e.kind = ErrFileTooLarge
	default:
		e.kind = ErrService
	}
	return e
}
