// Package apperr carries the error taxonomy shared by the token service,
// the session guard, the permission resolver and the moderation rules.
// Every failure that reaches the HTTP boundary is an *Error whose Kind maps
// to exactly one status code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind int

const (
	Internal Kind = iota
	Unauthenticated
	Forbidden
	InvalidArgument
	Conflict
	NotFound
	TooManyRequests
)

func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	case InvalidArgument:
		return "invalid_argument"
	case Conflict:
		return "conflict"
	case NotFound:
		return "not_found"
	case TooManyRequests:
		return "too_many_requests"
	}
	return "internal"
}

// HTTPStatus returns the status code rendered for k.
func (k Kind) HTTPStatus() int {
	switch k {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case InvalidArgument:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	case NotFound:
		return http.StatusNotFound
	case TooManyRequests:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// Reasons attached to Unauthenticated errors.
const (
	ReasonMissing   = "missing"
	ReasonMalformed = "malformed"
	ReasonExpired   = "expired"
	ReasonStale     = "stale"
	ReasonUnknown   = "unknown_identity"
)

// Error is the concrete error type.  Message is safe to show to clients;
// Err is the underlying cause and is only logged.
type Error struct {
	Kind    Kind
	Message string
	Reason  string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind and, when set on the target, Reason.
// It lets callers write errors.Is(err, apperr.New(apperr.Forbidden, "")).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// WithReason returns a copy of e carrying reason.
func (e *Error) WithReason(reason string) *Error {
	cp := *e
	cp.Reason = reason
	return &cp
}

// New builds an error with no cause.
func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

// Wrap builds an error of kind around cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// Unauthorized is shorthand for an Unauthenticated error with a reason.
func Unauthorized(reason, msg string) *Error {
	return &Error{Kind: Unauthenticated, Message: msg, Reason: reason}
}

// KindOf returns the Kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// ReasonOf returns the Reason of the first *Error in err's chain.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
