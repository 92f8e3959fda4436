// Package apperr defines the error taxonomy shared by the stores, the timer
// manager and the HTTP layer. Handlers map these to status codes with
// HTTPStatus; everything else wraps them with %w.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized means the caller carried no valid identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound means the referenced resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the resource exists but belongs to another user.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput means the request was rejected before any state change.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict means local and store state disagreed; resolved by
	// reconciliation, surfaced so the UI can show a corrective notice.
	ErrConflict = errors.New("conflict")
)

// Invalidf wraps ErrInvalidInput with a reason.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidInput}, args...)...)
}

// NotFoundf wraps ErrNotFound with the resource kind.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}

// HTTPStatus maps an error to its HTTP status code. Unrecognized errors are
// treated as internal.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
