package apperrors

import (
	"errors"
)

// Error is a failure tagged with a kind and a message that is safe to show to the caller.
// The underlying cause is kept for logs only.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func InvalidInput(message string, cause error) *Error {
	return newError(ErrInvalidInput, message, cause)
}

func Unauthorized(message string, cause error) *Error {
	return newError(ErrUnauthorized, message, cause)
}

func NotFound(message string, cause error) *Error {
	return newError(ErrNotFound, message, cause)
}

func UploadFailed(message string, cause error) *Error {
	return newError(ErrUploadFailed, message, cause)
}

func DeleteFailed(message string, cause error) *Error {
	return newError(ErrDeleteFailed, message, cause)
}

func CreationFailed(message string, cause error) *Error {
	return newError(ErrCreationFailed, message, cause)
}

func Internal(message string, cause error) *Error {
	return newError(ErrInternal, message, cause)
}

// KindOf returns kind of the error
// Errors without a kind are treated as internal ones
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrInternal
}

// PublicMessage returns message that could be shown to the caller
// It never contains the underlying cause
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "Internal server error"
}
