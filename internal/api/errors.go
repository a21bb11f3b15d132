package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Common API errors
var (
	// ErrBadRequest is returned for 400 and 422 answers.
	ErrBadRequest = errors.New("request rejected by the API")

	// ErrUnauthorized is returned for 401 and 403 answers.
	ErrUnauthorized = errors.New("not authorized by the API")

	// ErrNotFound is returned for 404 answers.
	ErrNotFound = errors.New("resource not found")

	// ErrServer is returned for 5xx answers and any other unexpected status.
	ErrServer = errors.New("API server error")

	// ErrTransport is returned when the request could not be sent or the
	// response could not be read.
	ErrTransport = errors.New("API unreachable")

	// ErrDecode is returned when a 2xx answer does not hold the expected JSON.
	ErrDecode = errors.New("unexpected API response")
)

// Error wraps an API failure with the request that caused it.
type Error struct {
	// Op is the client operation that failed (e.g. "ListInvoices").
	Op string

	// Method and Path identify the HTTP request.
	Method string
	Path   string

	// StatusCode is the HTTP status, 0 when no response was received.
	StatusCode int

	// Err is one of the sentinel errors above, or a context error.
	Err error

	// Details holds the message returned by the API, if any.
	Details string
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("api: %s %s %s failed", e.Op, e.Method, e.Path)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg + ": " + e.Err.Error()
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// classifyStatus maps a non-2xx status to a sentinel error.
func classifyStatus(status int) error {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return ErrBadRequest
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrUnauthorized
	case status == http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrServer
	}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
