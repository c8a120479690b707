// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"
	"net/http"

	"gorm.io/gorm"
)

// Kind classifies a failure for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Error is a classified service error. Msg is safe to show to callers;
// Err keeps the underlying cause for logs.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(k Kind, msg string, cause error) error {
	return &Error{Kind: k, Msg: msg, Err: cause}
}

func InvalidInput(msg string) error    { return newError(KindInvalidInput, msg, nil) }
func Unauthenticated(msg string) error { return newError(KindUnauthenticated, msg, nil) }
func Forbidden(msg string) error       { return newError(KindForbidden, msg, nil) }
func NotFound(msg string) error        { return newError(KindNotFound, msg, nil) }
func Conflict(msg string) error        { return newError(KindConflict, msg, nil) }

// Upstream marks a failure of an external collaborator (mail, object storage).
func Upstream(msg string, cause error) error { return newError(KindUpstream, msg, cause) }

// Internal wraps an unexpected failure. Its cause is never shown to callers.
func Internal(cause error) error { return newError(KindInternal, "internal server error", cause) }

// Map converts repo/infra errors into classified service errors.
// Keeps service layer clean by centralizing error mapping.
func Map(err error) error {
	if err == nil {
		return nil
	}

	var se *Error
	switch {
	case errors.As(err, &se):
		return err

	case errors.Is(err, gorm.ErrRecordNotFound):
		return newError(KindNotFound, "record not found", err)

	case errors.Is(err, gorm.ErrDuplicatedKey):
		return newError(KindConflict, "already exists", err)

	case errors.Is(err, context.DeadlineExceeded):
		return newError(KindUpstream, "request timed out", err)

	case errors.Is(err, context.Canceled):
		return newError(KindUpstream, "request canceled", err)

	default:
		return Internal(err)
	}
}

// KindOf returns the classification of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// HTTPStatus maps an error to the status code returned to clients.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the caller-facing reason for err.
func Message(err error) string {
	var se *Error
	if errors.As(err, &se) && se.Kind != KindInternal {
		return se.Msg
	}
	return "internal server error"
}
