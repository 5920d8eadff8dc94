// Package util provides utility functions and types for the relay.
//
// # Error Conventions
//
// This project follows a standardized error pattern across all packages:
//
//   - Sentinel errors (errors.New) for well-known, stable conditions
//     that callers check with errors.Is(). Example: ErrConfigInvalid.
//   - Structured error types for context-rich errors that carry
//     additional fields (e.g., ConfigError, BackendError). Each type
//     implements Error(), Unwrap() (if wrapping), and Is().
//   - fmt.Errorf with %w for ad-hoc wrapping that adds context to an
//     existing error without introducing a new type.
package util

import (
	"errors"
	"fmt"
	"time"
)

// Common sentinel errors.
var (
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrDiscoveryFailed  = errors.New("inspector discovery failed")
	ErrInspectorFailed  = errors.New("inspector failed")
	ErrBackendUnavail   = errors.New("backend unavailable")
	ErrTimeout          = errors.New("timeout")
	ErrMalformedRequest = errors.New("malformed request")
)

// ConfigError represents a configuration-related error.
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.Field != "" {
		return fmt.Sprintf("config error at %s: %s", e.Field, msg)
	}
	return fmt.Sprintf("config error: %s", msg)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ConfigError) Is(target error) bool {
	if target == ErrConfigInvalid {
		return true
	}
	_, ok := target.(*ConfigError)
	return ok || errors.Is(e.Cause, target)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewConfigErrorWithCause creates a new ConfigError with a cause.
func NewConfigErrorWithCause(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}

// ValidationError represents a validation failure.
type ValidationError struct {
	Fields  map[string]string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error: %s (fields: %v)", e.Message, e.Fields)
}

// Is checks if the error matches the target.
func (e *ValidationError) Is(target error) bool {
	if target == ErrConfigInvalid {
		return true
	}
	_, ok := target.(*ValidationError)
	return ok
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message, Fields: make(map[string]string)}
}

// AddField adds a field error.
func (e *ValidationError) AddField(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
}

// HasErrors reports whether any field error was recorded.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// DiscoveryError represents an inspector candidate that failed to load.
type DiscoveryError struct {
	Candidate string
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *DiscoveryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("inspector candidate %s: %s: %v", e.Candidate, e.Message, e.Cause)
	}
	return fmt.Sprintf("inspector candidate %s: %s", e.Candidate, e.Message)
}

// Unwrap returns the underlying error.
func (e *DiscoveryError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *DiscoveryError) Is(target error) bool {
	if target == ErrDiscoveryFailed {
		return true
	}
	_, ok := target.(*DiscoveryError)
	return ok || errors.Is(e.Cause, target)
}

// NewDiscoveryError creates a new DiscoveryError.
func NewDiscoveryError(candidate, message string, cause error) *DiscoveryError {
	return &DiscoveryError{Candidate: candidate, Message: message, Cause: cause}
}

// InspectorError represents a failed inspector invocation.
type InspectorError struct {
	Inspector string
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *InspectorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("inspector %s failed: %s: %v", e.Inspector, e.Message, e.Cause)
	}
	return fmt.Sprintf("inspector %s failed: %s", e.Inspector, e.Message)
}

// Unwrap returns the underlying error.
func (e *InspectorError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *InspectorError) Is(target error) bool {
	if target == ErrInspectorFailed {
		return true
	}
	_, ok := target.(*InspectorError)
	return ok || errors.Is(e.Cause, target)
}

// NewInspectorError creates a new InspectorError.
func NewInspectorError(inspector, message string, cause error) *InspectorError {
	return &InspectorError{Inspector: inspector, Message: message, Cause: cause}
}

// BackendError represents a backend connectivity error.
type BackendError struct {
	Backend string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("backend %s error: %s: %v", e.Backend, e.Message, e.Cause)
	}
	return fmt.Sprintf("backend %s error: %s", e.Backend, e.Message)
}

// Unwrap returns the underlying error.
func (e *BackendError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *BackendError) Is(target error) bool {
	if target == ErrBackendUnavail {
		return true
	}
	_, ok := target.(*BackendError)
	return ok || errors.Is(e.Cause, target)
}

// NewBackendError creates a new BackendError.
func NewBackendError(backend, message string) *BackendError {
	return &BackendError{Backend: backend, Message: message}
}

// NewBackendErrorWithCause creates a new BackendError with a cause.
func NewBackendErrorWithCause(backend, message string, cause error) *BackendError {
	return &BackendError{Backend: backend, Message: message, Cause: cause}
}

// TimeoutError represents a timeout error.
type TimeoutError struct {
	Operation string
	Duration  time.Duration
	Cause     error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %v during %s", e.Duration, e.Operation)
}

// Unwrap returns the underlying error.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if target == ErrTimeout {
		return true
	}
	_, ok := target.(*TimeoutError)
	return ok || errors.Is(e.Cause, target)
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration, cause error) *TimeoutError {
	return &TimeoutError{Operation: operation, Duration: duration, Cause: cause}
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
