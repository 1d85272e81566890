package engine

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy shared by the caption pipeline and its boundaries.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("not found")
	ErrNoCaptions          = errors.New("no captions")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrParse               = errors.New("parse error")
)

// StatusError is a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ExhaustedError is returned when every attempt of one transport operation failed.
// It carries the mode that was active on the last attempt and the attempt history.
type ExhaustedError struct {
	Mode     Mode
	Attempts int
	History  []Attempt
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("upstream unavailable after %d attempt(s), last mode %s: %v", e.Attempts, e.Mode, e.Err)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrUpstreamUnavailable, e.Err}
}

// HTTPStatus maps a pipeline error to the status code a boundary should answer with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNotFound):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoCaptions):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
