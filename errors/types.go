package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Session errors
	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"

	// Capture and upload errors
	ErrCodeCaptureFailed  ErrorCode = "CAPTURE_FAILED"
	ErrCodeUploadFailed   ErrorCode = "UPLOAD_FAILED"
	ErrCodeUploadDeferred ErrorCode = "UPLOAD_DEFERRED"

	// Durability errors
	ErrCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"

	// Network errors
	ErrCodeProbeFailed ErrorCode = "PROBE_FAILED"

	// Daemon errors
	ErrCodeDaemonNotRunning ErrorCode = "DAEMON_NOT_RUNNING"

	// General errors
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
)

// BoothError represents a structured error with context
type BoothError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`

	// Transient marks upload failures that are expected to clear on their own
	// (network drops, timeouts, 5xx).
	Transient bool `json:"transient,omitempty"`
}

// Error implements the error interface
func (e *BoothError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *BoothError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *BoothError) WithDetail(key string, value interface{}) *BoothError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *BoothError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new BoothError
func New(code ErrorCode, message string) *BoothError {
	return &BoothError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a BoothError
func Wrap(err error, code ErrorCode, message string) *BoothError {
	return &BoothError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific BoothError code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	boothErr, ok := err.(*BoothError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	if boothErr.Code == code {
		return true
	}
	if boothErr.Cause != nil {
		return Is(boothErr.Cause, code)
	}
	return false
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	boothErr, ok := err.(*BoothError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return boothErr.Code
}

// IsTransient reports whether err is an upload failure classified as transient.
// Errors that are not BoothErrors are treated as transient, since an
// unclassified failure is most likely a network hiccup.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	boothErr, ok := err.(*BoothError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			if inner := unwrapper.Unwrap(); inner != nil {
				return IsTransient(inner)
			}
		}
		return true
	}

	return boothErr.Transient
}
