package apperrors

import (
	"errors"
)

// Error kinds returned by services
// Match them with errors.Is, every *Error unwraps to its kind
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDeleteFailed   = errors.New("delete failed")
	ErrCreationFailed = errors.New("creation failed")
	ErrInternal       = errors.New("internal error")
)

// Repository level errors
var (
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrAccountNotFound      = errors.New("account not found")
	ErrVideoNotFound        = errors.New("video not found")
	ErrObjectNotFound       = errors.New("object not found")
)

// Token service errors
var (
	ErrTokenInvalid          = errors.New("token is invalid")
	ErrTokenGenerationFailed = errors.New("token generation failed")
)
