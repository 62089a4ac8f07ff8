package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a typed domain error that knows which HTTP status it maps to.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so clones and wrapped
// copies of a predefined error still match it with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors. Messages mirror the wording clients already rely on.
var (
	ErrInvalidInput     = New("INVALID_INPUT", http.StatusBadRequest, "Tutor must include name")
	ErrInvalidFormat    = New("INVALID_FORMAT", http.StatusBadRequest, "activeUntil must be HH:MM 24-hour format")
	ErrMissingFields    = New("MISSING_FIELDS", http.StatusBadRequest, "Missing required fields")
	ErrNotFound         = New("NOT_FOUND", http.StatusNotFound, "Tutor not found")
	ErrInactive         = New("INACTIVE", http.StatusBadRequest, "Tutor is currently inactive")
	ErrSubjectNotTaught = New("SUBJECT_NOT_TAUGHT", http.StatusBadRequest, "Tutor does not teach this course")
	ErrInsufficientTime = New("INSUFFICIENT_TIME", http.StatusBadRequest, "Tutor does not have enough remaining time for this session")
	ErrInternal         = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
