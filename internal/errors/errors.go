// Package errors provides a lightweight structured error type (VDocsError)
// for category-based classification and retry semantics in runners, stores,
// and the CLI/server adapters.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory represents the category of a vdocs error for classification
type ErrorCategory string

const (
	// Lookup and contention errors
	CategoryNotFound ErrorCategory = "not_found"
	CategoryConflict ErrorCategory = "conflict"

	// User-facing input errors
	CategoryValidation ErrorCategory = "validation"
	CategoryProtocol   ErrorCategory = "protocol"

	// External system and infrastructure errors
	CategoryIO         ErrorCategory = "io"
	CategoryDependency ErrorCategory = "dependency"
	CategoryInternal   ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
)

// VDocsError is a structured error with category, retryability, and context
type VDocsError struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for VDocsError
type ContextFields map[string]any

// Error implements the error interface
func (e *VDocsError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *VDocsError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *VDocsError) WithContext(key string, value any) *VDocsError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new VDocsError
func New(category ErrorCategory, severity ErrorSeverity, message string) *VDocsError {
	return &VDocsError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new VDocsError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *VDocsError {
	return &VDocsError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// NotFound creates a not_found error for an unresolvable target id
func NotFound(message string) *VDocsError {
	return New(CategoryNotFound, SeverityWarning, message)
}

// Conflict creates a conflict error (slug collision or lock contention)
func Conflict(message string) *VDocsError {
	return New(CategoryConflict, SeverityWarning, message)
}

// ValidationError creates a validation error for ill-formed input
func ValidationError(message string) *VDocsError {
	return New(CategoryValidation, SeverityWarning, message)
}

// ProtocolError creates a recoverable protocol error (client message in the
// wrong runner state)
func ProtocolError(message string) *VDocsError {
	e := New(CategoryProtocol, SeverityWarning, message)
	e.Retryable = true
	return e
}

// IOError creates a filesystem error, terminal for the current run
func IOError(message string, cause error) *VDocsError {
	return Wrap(cause, CategoryIO, SeverityError, message)
}

// DependencyError creates an external-service error; retryable indicates
// whether the failing stage allows a retry
func DependencyError(message string, cause error, retryable bool) *VDocsError {
	e := Wrap(cause, CategoryDependency, SeverityError, message)
	e.Retryable = retryable
	return e
}

// InternalError creates an internal invariant failure
func InternalError(message string) *VDocsError {
	return New(CategoryInternal, SeverityError, message)
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	var ve *VDocsError
	if errors.As(err, &ve) {
		return ve.Category == category
	}
	return false
}

// IsNotFound reports whether the error is a not_found error
func IsNotFound(err error) bool { return IsCategory(err, CategoryNotFound) }

// IsConflict reports whether the error is a conflict error
func IsConflict(err error) bool { return IsCategory(err, CategoryConflict) }

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var ve *VDocsError
	if errors.As(err, &ve) {
		return ve.Retryable
	}
	return false
}

// GetCategory extracts the category from an error, or returns
// CategoryInternal if not a VDocsError
func GetCategory(err error) ErrorCategory {
	var ve *VDocsError
	if errors.As(err, &ve) {
		return ve.Category
	}
	return CategoryInternal
}
