// Package apperror defines the typed error taxonomy every component in the
// engine returns, so that client-facing transport and background loops can
// each react to the same error without string-matching messages.
package apperror

import (
	"errors"
	"fmt"
)

// Kind buckets an error by how a caller should react to it.
type Kind int

const (
	// Validation means the request itself was malformed; never retried.
	Validation Kind = iota
	// NotFound means the referenced entity does not exist.
	NotFound
	// Unauthorized means the caller is not entitled to the operation.
	Unauthorized
	// Conflict means the operation collides with existing state.
	Conflict
	// Dependency means an external collaborator (oracle, ledger, store)
	// failed; background loops retry, clients see a 5xx.
	Dependency
	// Invariant means an internal consistency check failed — the caller
	// should treat this as a bug, not user error.
	Invariant
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "Validation"
	case NotFound:
		return "NotFound"
	case Unauthorized:
		return "Unauthorized"
	case Conflict:
		return "Conflict"
	case Dependency:
		return "Dependency"
	case Invariant:
		return "Invariant"
	default:
		return "Unknown"
	}
}

// HTTPStatus is the conventional status code a transport layer should map
// this Kind to.
func (k Kind) HTTPStatus() int {
	switch k {
	case Validation:
		return 400
	case NotFound:
		return 404
	case Unauthorized:
		return 401
	case Conflict:
		return 409
	case Dependency:
		return 503
	case Invariant:
		return 500
	default:
		return 500
	}
}

// Error is a code-classified error every component returns instead of a
// bare error string.
type Error struct {
	Kind    Kind
	Code    string // short machine-matchable name, e.g. "InvalidParams"
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Code, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Code, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: cause.Error(), Cause: cause}
}

func Validationf(code, format string, args ...interface{}) *Error {
	return New(Validation, code, fmt.Sprintf(format, args...))
}

func NotFoundf(code, format string, args ...interface{}) *Error {
	return New(NotFound, code, fmt.Sprintf(format, args...))
}

func Unauthorizedf(code, format string, args ...interface{}) *Error {
	return New(Unauthorized, code, fmt.Sprintf(format, args...))
}

func Conflictf(code, format string, args ...interface{}) *Error {
	return New(Conflict, code, fmt.Sprintf(format, args...))
}

func Dependencyf(code string, cause error) *Error {
	return Wrap(Dependency, code, cause)
}

func Invariantf(code, format string, args ...interface{}) *Error {
	return New(Invariant, code, fmt.Sprintf(format, args...))
}

// KindOf extracts the Kind of err if it (or something it wraps) is an
// *Error; defaults to Invariant for unclassified errors, since an error
// this taxonomy has never seen is itself a bug worth surfacing loudly.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Invariant
}
