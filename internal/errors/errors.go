// Package errors provides error code definitions for the Chronicle sync engine.
package errors

import "fmt"

// ErrorCode represents a unique error code surfaced across the engine
// boundary.
type ErrorCode string

const (
	// General errors
	ErrInternal ErrorCode = "INTERNAL_ERROR"
	ErrInvalid  ErrorCode = "INVALID_INPUT"
	ErrNotFound ErrorCode = "NOT_FOUND"

	// Remote store errors
	ErrRemoteUnavailable ErrorCode = "REMOTE_UNAVAILABLE"
	ErrDecodeFailure     ErrorCode = "DECODE_FAILURE"

	// Mutation errors
	ErrNotAuthor        ErrorCode = "NOT_AUTHOR"
	ErrMissingRemoteRef ErrorCode = "MISSING_REMOTE_REF"

	// Identity errors
	ErrIdentityUnresolved ErrorCode = "IDENTITY_UNRESOLVED"

	// Sync errors
	ErrSyncInProgress ErrorCode = "SYNC_IN_PROGRESS"
	ErrSyncFailed     ErrorCode = "SYNC_FAILED"

	// Local persistence errors
	ErrCache     ErrorCode = "CACHE_ERROR"
	ErrQueueFull ErrorCode = "QUEUE_FULL"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error carries a specific code, unwrapping nested
// AppErrors.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		appErr, ok := err.(*AppError)
		if !ok {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

// Code returns the error code of err, or ErrInternal if err is not an
// AppError.
func Code(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ErrInternal
}
