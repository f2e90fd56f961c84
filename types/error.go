package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

// Conversion attempt error codes. These are non-fatal for the job: each one
// triggers fallback to the next candidate method.
const (
	ErrMethodUnavailable ErrorCode = "METHOD_UNAVAILABLE"
	ErrConversionTimeout ErrorCode = "CONVERSION_TIMEOUT"
	ErrToolError         ErrorCode = "TOOL_ERROR"
)

// Job-level error codes. These are fatal for the job.
const (
	ErrAllMethodsExhausted ErrorCode = "ALL_METHODS_EXHAUSTED"
	ErrOutputPathLocked    ErrorCode = "OUTPUT_PATH_LOCKED"
	ErrJobDeadlineExceeded ErrorCode = "JOB_DEADLINE_EXCEEDED"
)

// Material pipeline codes. All of these except the structural validation
// failure degrade the job to SucceededWithWarnings.
const (
	ErrMaterialExtractionIncomplete ErrorCode = "MATERIAL_EXTRACTION_INCOMPLETE"
	ErrProfileUnsupported           ErrorCode = "PROFILE_UNSUPPORTED"
	ErrValidationNonStructural      ErrorCode = "VALIDATION_FAILED_NON_STRUCTURAL"
	ErrValidationStructural         ErrorCode = "VALIDATION_FAILED_STRUCTURAL"
)

// Contract violation codes. Returned as plain errors from API entry points,
// never recorded in a ConversionResult.
const (
	ErrInvalidJob        ErrorCode = "INVALID_JOB"
	ErrUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	ErrMalformedMaterial ErrorCode = "MALFORMED_MATERIAL"
)

// Error represents a structured error with code, message, and cause.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Method  string    `json:"method,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithMethod tags the error with the conversion method that produced it.
func (e *Error) WithMethod(method string) *Error {
	e.Method = method
	return e
}

// GetErrorCode extracts the error code from an error, unwrapping as needed.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsFallbackTrigger reports whether the code is an attempt-level failure
// that should advance the orchestrator to the next method.
func IsFallbackTrigger(code ErrorCode) bool {
	switch code {
	case ErrMethodUnavailable, ErrConversionTimeout, ErrToolError:
		return true
	}
	return false
}
