package apperr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error is the error type that flows through RustMailer from the point of
// origin to the REST/gRPC boundary translators. It always carries a Code.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error at the point of origin, attaching a stack trace via
// github.com/pkg/errors so the cause chain stays debuggable.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: errors.New(message)}
}

// Wrap attaches a Code and message to an existing error, preserving it as
// the cause.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: errors.Wrap(err, message)}
}

// CodeOf extracts the Code from err if it is (or wraps) an *Error, defaulting
// to InternalError otherwise.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return InternalError
}

// As is a narrow convenience wrapper matching errors.As for *Error.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
