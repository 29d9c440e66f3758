// Package errors defines the error taxonomy shared by the indexer, the
// searcher and the HTTP layer. Callers match on the sentinels with errors.Is;
// AppError attaches context and an optional cause to a sentinel.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrIO            = errors.New("io error")
	ErrIndexNotFound = errors.New("index not found")
	ErrFileNotFound  = errors.New("file not found")
	ErrBuildTimeout  = errors.New("index build timed out")
	ErrSearchTimeout = errors.New("search timed out")
	ErrDecode        = errors.New("decode error")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInternal      = errors.New("internal error")
)

// classes is checked in order; the first sentinel err matches decides its
// HTTP status and kind label.
var classes = []struct {
	sentinel error
	status   int
	kind     string
}{
	{ErrInvalidInput, http.StatusBadRequest, "invalid"},
	{ErrIndexNotFound, http.StatusNotFound, "index_not_found"},
	{ErrFileNotFound, http.StatusNotFound, "not_found"},
	{ErrDecode, http.StatusUnprocessableEntity, "decode"},
	{ErrBuildTimeout, http.StatusServiceUnavailable, "timeout"},
	{ErrSearchTimeout, http.StatusServiceUnavailable, "timeout"},
	{ErrIO, http.StatusInternalServerError, "io"},
}

// AppError wraps one of the sentinel errors with context. errors.Is matches
// the sentinel through Err.
type AppError struct {
	Err     error
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Err, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Message)
}

// Unwrap exposes both the sentinel and the cause to errors.Is and errors.As.
func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

// Wrap classifies cause, which may be nil, under sentinel.
func Wrap(sentinel error, cause error, format string, args ...any) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// HTTPStatusCode maps err to the response status; unclassified errors are 500.
func HTTPStatusCode(err error) int {
	for _, c := range classes {
		if errors.Is(err, c.sentinel) {
			return c.status
		}
	}
	return http.StatusInternalServerError
}

// Kind returns a short stable label for err, used as a metric label and in
// logs: "ok" for nil and "internal" when no sentinel matches.
func Kind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, c := range classes {
		if errors.Is(err, c.sentinel) {
			return c.kind
		}
	}
	return "internal"
}
