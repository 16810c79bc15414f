package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a failure in the fetch/persist pipeline.
type Kind string

const (
	KindInvalidArgument Kind = "INVALID_ARGUMENT"
	KindTransport       Kind = "TRANSPORT_ERROR"
	KindUpstream        Kind = "UPSTREAM_ERROR"
	KindDecode          Kind = "DECODE_ERROR"
	KindInvalidData     Kind = "INVALID_DATA"
	KindRateLimited     Kind = "RATE_LIMITED"
	KindAuthFailed      Kind = "AUTH_FAILED"
	KindPersistence     Kind = "PERSISTENCE_ERROR"
	KindInternal        Kind = "INTERNAL"
)

// Error carries a human-readable message that is safe to show to end users.
// The wrapped cause is kept for logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user-facing message for err. Errors that are not
// *Error never expose their internals.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "An unexpected error occurred."
}

// HTTPStatus maps a Kind to the status code used by the JSON endpoints.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindAuthFailed:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindTransport, KindUpstream, KindDecode, KindInvalidData:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
