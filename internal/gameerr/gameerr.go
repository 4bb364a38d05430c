// Package gameerr provides the typed errors returned by the registry,
// the engine and the session layer.
package gameerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for transport mapping.
type Code string

const (
	// CodeNotFound marks a missing room, player, puzzle or choice.
	CodeNotFound Code = "NOT_FOUND"
	// CodePrecondition marks an operation the current state does not allow.
	CodePrecondition Code = "PRECONDITION"
	// CodeInvalid marks malformed input such as a broken inline scenario.
	CodeInvalid Code = "INVALID"
	// CodeInternal marks anything unexpected.
	CodeInternal Code = "INTERNAL"
)

// HTTPStatus maps a code to the status used by the HTTP surface.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodePrecondition:
		return http.StatusConflict
	case CodeInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error. Key identifies the condition for errors.Is;
// Message is the short human-readable reason sent to players.
type Error struct {
	Code    Code
	Key     string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error carrying the same key, so a sentinel still
// matches after WithMessage has replaced its text.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Key == t.Key
}

// WithMessage returns a copy of e with a more specific message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	return &Error{Code: e.Code, Key: e.Key, Message: fmt.Sprintf(format, args...)}
}

func newError(code Code, key, msg string) *Error {
	return &Error{Code: code, Key: key, Message: msg}
}

// NotFound returns a not-found error whose key is its message.
func NotFound(msg string) *Error { return newError(CodeNotFound, msg, msg) }

// Precondition returns a precondition error whose key is its message.
func Precondition(msg string) *Error { return newError(CodePrecondition, msg, msg) }

// Invalid returns an invalid-input error whose key is its message.
func Invalid(msg string) *Error { return newError(CodeInvalid, msg, msg) }

// ErrInternal is reported for failures the caller cannot act on.
var ErrInternal = newError(CodeInternal, "internal", "Server error")

// CodeOf reports the code of the first *Error in err's chain,
// or CodeInternal when there is none.
func CodeOf(err error) Code {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return CodeInternal
}

// Message returns the player-facing text for err. Errors outside the
// taxonomy collapse to the generic server error so internals never leak.
func Message(err error) string {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Message
	}
	return ErrInternal.Message
}
