// Package domainerrors defines coded errors returned across service boundaries.
//
// Services translate store and infrastructure failures into these codes so
// callers can tell business-rule violations from infrastructure failures
// without inspecting storage-specific error types.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	CodeNotFound           Code = "not_found"
	CodeDuplicateContact   Code = "duplicate_contact"
	CodeAlreadyJoined      Code = "already_joined"
	CodeNotEnrolled        Code = "not_enrolled"
	CodeInvalidProgress    Code = "invalid_progress"
	CodeAlreadyResolved    Code = "already_resolved"
	CodeExpired            Code = "expired"
	CodeStorageFailure     Code = "storage_failure"
	CodeValidation         Code = "validation_error"
	CodeInvariantViolation Code = "invariant_violation"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"
)

// Error carries a Code, a caller-safe message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a domain error without an underlying cause.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
// Wrapping a nil error returns nil.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code of the outermost domain error in err's chain,
// or the empty code if there is none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// HasCode reports whether any domain error in err's chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// IsStorageFailure reports whether err is an infrastructure failure that
// callers may retry, as opposed to a business-rule violation.
func IsStorageFailure(err error) bool {
	return HasCode(err, CodeStorageFailure) || HasCode(err, CodeTimeout)
}
