// Package apperror defines the domain error taxonomy shared by every layer.
//
// Services return these errors; only the HTTP layer decides which status
// code each one becomes. Callers match with errors.Is against the sentinels
// and read the human-readable text with errors.As on *AppError.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	// ErrUnauthorized means the request carries no usable session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnavailable means the backing store cannot be reached.
	ErrUnavailable = errors.New("unavailable")

	// ErrUpstreamCredential means the image provider rejected our API key.
	// It is surfaced to the caller instead of being masked by placeholders.
	ErrUpstreamCredential = errors.New("upstream credential rejected")

	// ErrUpstreamRateLimited means the image provider refused the call
	// because our quota is exhausted.
	ErrUpstreamRateLimited = errors.New("upstream rate limited")
)

type AppError struct {
	Err     error  // sentinel this error matches
	Message string // human-readable message, safe to show to clients
	Field   string // optional: input field that caused the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is returned when authentication is required but missing.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Unavailable is returned when a dependency (usually the database) is down.
func Unavailable(message string) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: message,
	}
}

func UpstreamCredential(message string) *AppError {
	return &AppError{
		Err:     ErrUpstreamCredential,
		Message: message,
	}
}

func UpstreamRateLimited(message string) *AppError {
	return &AppError{
		Err:     ErrUpstreamRateLimited,
		Message: message,
	}
}
