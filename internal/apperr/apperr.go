// Package apperr defines the tagged error kinds used across the search and AI routing
// core, and their mapping onto HTTP status codes at the transport boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the tagged union of error categories the core ever surfaces.
type Kind string

const (
	KindInvalidInput     Kind = "invalid_input"
	KindNotFound         Kind = "not_found"
	KindPermissionDenied Kind = "permission_denied"
	KindProviderFailure  Kind = "provider_failure"
	KindEmbeddingFailure Kind = "embedding_failure"
	KindRouterFailure    Kind = "router_failure"
	KindConflictBusy     Kind = "conflict_busy"
	KindUnauthorized     Kind = "unauthorized"
	KindInternalFailure  Kind = "internal_failure"
)

// Error is the typed error carried through the core. Clients only ever see
// Message (localized) and the HTTP status derived from Kind; Cause is logged, never returned.
type Error struct {
	Kind       Kind
	Message    string
	Provider   string
	StatusCode int // provider-reported status, when Kind == KindProviderFailure
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// HTTPStatus maps the error kind to the HTTP status code defined in the external
// interface contract. ConflictBusy deliberately returns 200: it is a benign
// "already running" response, not a failure, for the admin re-index endpoint.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidInput:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindProviderFailure, KindRouterFailure:
		return http.StatusBadGateway
	case KindConflictBusy:
		return http.StatusOK
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func InvalidInput(format string, args ...any) *Error {
	return New(KindInvalidInput, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func PermissionDenied(format string, args ...any) *Error {
	return New(KindPermissionDenied, fmt.Sprintf(format, args...))
}

func Unauthorized(format string, args ...any) *Error {
	return New(KindUnauthorized, fmt.Sprintf(format, args...))
}

func ConflictBusy(format string, args ...any) *Error {
	return New(KindConflictBusy, fmt.Sprintf(format, args...))
}

func Internal(cause error) *Error {
	return &Error{Kind: KindInternalFailure, Message: "internal error", Cause: cause}
}

// Provider builds a ProviderFailure{provider, status_code?} error.
func Provider(provider, message string, statusCode int) *Error {
	return &Error{Kind: KindProviderFailure, Provider: provider, Message: message, StatusCode: statusCode}
}

func Embedding(cause error) *Error {
	return &Error{Kind: KindEmbeddingFailure, Message: "embedding backend failed", Cause: cause}
}

func Router(format string, args ...any) *Error {
	return New(KindRouterFailure, fmt.Sprintf(format, args...))
}

// As extracts an *Error from err, following the standard unwrap chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Detail returns the message that is safe to return to an HTTP client: the
// typed message for a known *Error, or a generic opaque message otherwise.
func Detail(err error) string {
	if e, ok := As(err); ok {
		return e.Message
	}
	return "internal error"
}
