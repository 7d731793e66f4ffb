package client

import (
	"errors"
	"fmt"
)

// UploadServerError represents an error response from the server during upload
type UploadServerError struct {
	IsRecoverable bool
	StatusCode    int // 0 when the request never got a response
	InnerError    error
}

func (e *UploadServerError) Error() string {
	if e.InnerError != nil {
		return fmt.Sprintf("Error during upload: %v", e.InnerError)
	}
	return "Error during upload"
}

func (e *UploadServerError) Unwrap() error {
	return e.InnerError
}

// NewRecoverableUploadError creates a new recoverable UploadServerError
func NewRecoverableUploadError(statusCode int, inner error) *UploadServerError {
	return &UploadServerError{IsRecoverable: true, StatusCode: statusCode, InnerError: inner}
}

// NewNonRecoverableUploadError creates a new non-recoverable UploadServerError
func NewNonRecoverableUploadError(statusCode int, inner error) *UploadServerError {
	return &UploadServerError{IsRecoverable: false, StatusCode: statusCode, InnerError: inner}
}

// IsUploadServerError checks if the error is, or wraps, an UploadServerError
func IsUploadServerError(err error) bool {
	var e *UploadServerError
	return errors.As(err, &e)
}

// IsRecoverableUploadError returns true if the error is recoverable (not a client-side error)
func IsRecoverableUploadError(err error) bool {
	var e *UploadServerError
	if errors.As(err, &e) {
		return e.IsRecoverable
	}
	return false
}
