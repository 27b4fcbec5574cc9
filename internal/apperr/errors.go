// Package apperr defines the error taxonomy shared by the callback handler,
// the integration bridge, the dispatcher and the HTTP API.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind string

const (
	KindMalformedCallback      Kind = "MalformedCallback"
	KindTokenExchangeFailed    Kind = "TokenExchangeFailed"
	KindIntegrationSetupFailed Kind = "IntegrationSetupFailed"
	KindValidation             Kind = "ValidationError"
	KindUpstream               Kind = "UpstreamServiceError"
	KindNotFound               Kind = "NotFound"
)

// Error is an application error with a kind, a human-readable message and an
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err, apperr.NotFound(""))
// style checks work on kinds.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Detail returns the text of the wrapped cause, or "" if there is none.
func (e *Error) Detail() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// HTTPStatus maps the kind to an HTTP status code.
func (e *Error) HTTPStatus() int {
	return StatusFor(e.Kind)
}

// StatusFor maps a kind to an HTTP status code.
func StatusFor(k Kind) int {
	switch k {
	case KindValidation, KindMalformedCallback:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindTokenExchangeFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// New creates an error of the given kind.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// MalformedCallback indicates the OAuth redirect lacked code or state, or the state did not match.
func MalformedCallback(msg string) *Error {
	return New(KindMalformedCallback, msg, nil)
}

// TokenExchangeFailed indicates the provider rejected or failed the code exchange.
func TokenExchangeFailed(msg string, cause error) *Error {
	return New(KindTokenExchangeFailed, msg, cause)
}

// IntegrationSetupFailed indicates the tool-connector platform could not set up a connection.
func IntegrationSetupFailed(msg string, cause error) *Error {
	return New(KindIntegrationSetupFailed, msg, cause)
}

// Validation indicates a client request was missing required fields.
func Validation(msg string) *Error {
	return New(KindValidation, msg, nil)
}

// Upstream indicates the LLM or connector platform failed.
func Upstream(msg string, cause error) *Error {
	return New(KindUpstream, msg, cause)
}

// NotFound indicates the requested record or route does not exist.
func NotFound(msg string) *Error {
	return New(KindNotFound, msg, nil)
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
