package overlay

import (
	"errors"
	"fmt"
)

// ErrorCode classifies pipeline failures.
type ErrorCode string

const (
	ErrorInvalidGeometry ErrorCode = "INVALID_GEOMETRY"
	ErrorAdapterFailure  ErrorCode = "ADAPTER_FAILURE"
	ErrorInternal        ErrorCode = "INTERNAL_ERROR"
	ErrorCancelled       ErrorCode = "CANCELLED"
)

// Error is a classified pipeline error.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (caused by: %v)", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func NewInvalidGeometryError(op, format string, args ...any) *Error {
	return &Error{Code: ErrorInvalidGeometry, Op: op, Message: fmt.Sprintf(format, args...)}
}

func NewAdapterFailureError(op string, cause error) *Error {
	return &Error{Code: ErrorAdapterFailure, Op: op, Message: "adapter call failed", Cause: cause}
}

func NewInternalError(op, format string, args ...any) *Error {
	return &Error{Code: ErrorInternal, Op: op, Message: fmt.Sprintf(format, args...)}
}

func NewCancelledError(op string, cause error) *Error {
	return &Error{Code: ErrorCancelled, Op: op, Message: "cycle cancelled", Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
