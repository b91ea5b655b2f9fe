// internal/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
)

type ErrorType string

const (
	ErrorTypeTransient    ErrorType = "TRANSIENT"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeCorrupt      ErrorType = "CORRUPT"
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeInternal     ErrorType = "INTERNAL"
)

// Error is the typed failure shared by the source, the snapshot stores
// and the reconciliation driver.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Err: cause}
}

func Transient(message string, cause error) *Error {
	return newError(ErrorTypeTransient, message, cause)
}

func NotFound(message string) *Error {
	return newError(ErrorTypeNotFound, message, nil)
}

func Unauthorized(message string) *Error {
	return newError(ErrorTypeUnauthorized, message, nil)
}

func Corrupt(message string, cause error) *Error {
	return newError(ErrorTypeCorrupt, message, cause)
}

func Internal(message string, cause error) *Error {
	return newError(ErrorTypeInternal, message, cause)
}

func ValidationError(message string, details any) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Message: message,
		Details: details,
	}
}

// TypeOf returns the type of the first *Error in err's chain, or
// ErrorTypeInternal when there is none.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}

func IsTransient(err error) bool    { return err != nil && TypeOf(err) == ErrorTypeTransient }
func IsNotFound(err error) bool     { return err != nil && TypeOf(err) == ErrorTypeNotFound }
func IsUnauthorized(err error) bool { return err != nil && TypeOf(err) == ErrorTypeUnauthorized }
func IsCorrupt(err error) bool      { return err != nil && TypeOf(err) == ErrorTypeCorrupt }

// IsSkippable reports whether a per-project failure should be logged and
// skipped rather than stop the cycle.
func IsSkippable(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeTransient, ErrorTypeNotFound:
		return true
	}
	return false
}
