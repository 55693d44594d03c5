package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrorTypeNotFound           ErrorType = "NOT_FOUND"
	ErrorTypeAlreadyInitialized ErrorType = "ALREADY_INITIALIZED"
	ErrorTypeCorruptData        ErrorType = "CORRUPT_DATA"
	ErrorTypeIOFailure          ErrorType = "IO_FAILURE"
	ErrorTypeValidation         ErrorType = "VALIDATION"
	ErrorTypeConflict           ErrorType = "CONFLICT"
	ErrorTypeLocked             ErrorType = "LOCKED"
)

// Sentinels for errors.Is. Any *Error of the same type matches.
var (
	ErrNotFound           = &Error{Type: ErrorTypeNotFound}
	ErrAlreadyInitialized = &Error{Type: ErrorTypeAlreadyInitialized}
	ErrCorruptData        = &Error{Type: ErrorTypeCorruptData}
	ErrIOFailure          = &Error{Type: ErrorTypeIOFailure}
	ErrValidation         = &Error{Type: ErrorTypeValidation}
	ErrConflict           = &Error{Type: ErrorTypeConflict}
	ErrLocked             = &Error{Type: ErrorTypeLocked}
)

type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
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

// Is reports whether target is an *Error of the same type.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

func NotFound(message string) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

func AlreadyInitialized(message string) *Error {
	return &Error{
		Type:    ErrorTypeAlreadyInitialized,
		Message: message,
		Code:    http.StatusConflict,
	}
}

func CorruptData(message string, err error) *Error {
	return &Error{
		Type:    ErrorTypeCorruptData,
		Message: message,
		Code:    http.StatusInternalServerError,
		Err:     err,
	}
}

func IOFailure(message string, err error) *Error {
	return &Error{
		Type:    ErrorTypeIOFailure,
		Message: message,
		Code:    http.StatusInternalServerError,
		Err:     err,
	}
}

func ValidationError(message string) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Message: message,
		Code:    http.StatusBadRequest,
	}
}

func Conflict(message string) *Error {
	return &Error{
		Type:    ErrorTypeConflict,
		Message: message,
		Code:    http.StatusConflict,
	}
}

func Locked(message string, err error) *Error {
	return &Error{
		Type:    ErrorTypeLocked,
		Message: message,
		Code:    http.StatusServiceUnavailable,
		Err:     err,
	}
}

// TypeOf returns the type of the first *Error in err's chain, or "" if none.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ""
}

// StatusCode maps err to an HTTP status, defaulting to 500.
func StatusCode(err error) int {
	var e *Error
	if stderrors.As(err, &e) && e.Code != 0 {
		return e.Code
	}
	return http.StatusInternalServerError
}
