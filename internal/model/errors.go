package model

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes failures crossing the boundary.
type ErrorCode string

const (
	// CodeValidation indicates missing or malformed input.
	CodeValidation ErrorCode = "VALIDATION"

	// CodeAuth indicates a failed login.
	CodeAuth ErrorCode = "AUTH"

	// CodePersistence indicates a database or file I/O failure.
	CodePersistence ErrorCode = "PERSISTENCE"

	// CodeNotFound indicates a lookup miss.
	CodeNotFound ErrorCode = "NOT_FOUND"
)

// InvalidCredentials is the only message an AUTH error ever carries.
const InvalidCredentials = "invalid credentials"

// Error is the typed error every store returns for classified failures.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the operation that failed, e.g. "records.create".
	Op string

	// Message is safe to show to the user.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil && e.Err.Error() != e.Message {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError creates a VALIDATION error.
func NewValidationError(op, message string) *Error {
	return &Error{Code: CodeValidation, Op: op, Message: message}
}

// NewNotFoundError creates a NOT_FOUND error.
func NewNotFoundError(op, message string) *Error {
	return &Error{Code: CodeNotFound, Op: op, Message: message}
}

// NewAuthError creates an AUTH error. The message is fixed so callers cannot
// tell an unknown username from a wrong password.
func NewAuthError(op string) *Error {
	return &Error{Code: CodeAuth, Op: op, Message: InvalidCredentials}
}

// NewPersistenceError wraps an I/O or engine failure.
func NewPersistenceError(op string, err error) *Error {
	msg := "storage failure"
	if err != nil {
		msg = err.Error()
	}
	return &Error{Code: CodePersistence, Op: op, Message: msg, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// MessageOf returns the user-facing message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// IsValidation reports whether err is a VALIDATION error.
func IsValidation(err error) bool { return CodeOf(err) == CodeValidation }

// IsAuth reports whether err is an AUTH error.
func IsAuth(err error) bool { return CodeOf(err) == CodeAuth }

// IsPersistence reports whether err is a PERSISTENCE error.
func IsPersistence(err error) bool { return CodeOf(err) == CodePersistence }

// IsNotFound reports whether err is a NOT_FOUND error.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }
