package services

import (
	"errors"
	"net/http"
)

// Code classifies a service error for the HTTP layer.
type Code string

const (
	CodeInvalidArgument Code = "invalid_argument"
	CodeNotFound        Code = "not_found"
	CodeConflict        Code = "conflict"
	CodeForbidden       Code = "forbidden"
	CodeUnavailable     Code = "unavailable"
	CodeInternal        Code = "internal"
)

// Error is returned by services when the caller did something the domain
// rejects. Message is safe to show to clients.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus maps the code to a response status
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Sentinels for errors.Is checks
var (
	ErrInvalidArgument = &Error{Code: CodeInvalidArgument}
	ErrNotFound        = &Error{Code: CodeNotFound}
	ErrConflict        = &Error{Code: CodeConflict}
	ErrForbidden       = &Error{Code: CodeForbidden}
	ErrUnavailable     = &Error{Code: CodeUnavailable}
)

// IsCode reports whether err is a service error with the given code
func IsCode(err error, code Code) bool {
	var svcErr *Error
	return errors.As(err, &svcErr) && svcErr.Code == code
}

func invalidArgument(message string) *Error {
	return &Error{Code: CodeInvalidArgument, Message: message}
}

func notFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message}
}

func conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

func forbidden(message string) *Error {
	return &Error{Code: CodeForbidden, Message: message}
}

func unavailable(message string) *Error {
	return &Error{Code: CodeUnavailable, Message: message}
}

func wrapInternal(message string, cause error) *Error {
	return &Error{Code: CodeInternal, Message: message, Cause: cause}
}

// StatusFor returns the HTTP status and client message for err.
// Errors that are not *Error are reported as a generic 500.
func StatusFor(err error) (int, string) {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		if svcErr.Code == CodeInternal {
			return http.StatusInternalServerError, svcErr.Message
		}
		return svcErr.Code.HTTPStatus(), svcErr.Message
	}
	return http.StatusInternalServerError, "Internal server error"
}
