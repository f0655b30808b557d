// Package errors provides custom error types for the sync system.
// These errors enable programmatic error checking and distinguish
// fatal data-integrity failures from recoverable apply-time failures.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is and As are aliases for the standard library matchers so callers
// need a single errors import.
var (
	Is = errors.Is
	As = errors.As
)

// Common sentinel errors for the sync system
var (
	// ErrNotFound indicates that a requested record was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that a record already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrIntegrity indicates that the inputs violate the matching
	// algorithm's assumptions and the run cannot continue safely
	ErrIntegrity = errors.New("integrity violation")

	// ErrProviderUnavailable indicates that a provider is temporarily unavailable
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrRateLimited indicates that the API rate limit has been exceeded
	ErrRateLimited = errors.New("rate limited")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")
)

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// IntegrityError represents a fatal data-integrity violation: a
// duplicate id within a side, a same-side fingerprint collision, a
// double-flagged modification, an ambiguous cross-side match, or an
// unknown action tag. These abort the whole run before anything is
// applied and are never retried.
type IntegrityError struct {
	Kind    string // "duplicate_id", "duplicate_fingerprint", "ambiguous_match", "unknown_action"
	IDs     []string
	Message string
}

// Error implements the error interface
func (e *IntegrityError) Error() string {
	if len(e.IDs) > 0 {
		return fmt.Sprintf("integrity violation (%s) for ids %v: %s", e.Kind, e.IDs, e.Message)
	}
	return fmt.Sprintf("integrity violation (%s): %s", e.Kind, e.Message)
}

// Is implements errors.Is support
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

// NewIntegrityError creates a new IntegrityError
func NewIntegrityError(kind, message string, ids ...string) *IntegrityError {
	return &IntegrityError{Kind: kind, IDs: ids, Message: message}
}

// APIError represents an error from a provider API
type APIError struct {
	Provider   string // Provider ID as string
	StatusCode int
	Message    string
	Endpoint   string
	Err        error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error from %s (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error from %s: %s", e.Provider, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *APIError) Is(target error) bool {
	if e.StatusCode == 429 {
		return target == ErrRateLimited
	}
	if e.StatusCode >= 500 {
		return target == ErrProviderUnavailable
	}
	return false
}

// NewAPIError creates a new APIError
func NewAPIError(provider string, statusCode int, message string) *APIError {
	return &APIError{
		Provider:   provider,
		StatusCode: statusCode,
		Message:    message,
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// SyncError represents an error during a reconciliation run
type SyncError struct {
	Provider string
	Records  []string
	Err      error
}

// Error implements the error interface
func (e *SyncError) Error() string {
	if len(e.Records) > 0 {
		return fmt.Sprintf("sync error for provider %s (affected records: %v): %v", e.Provider, e.Records, e.Err)
	}
	return fmt.Sprintf("sync error for provider %s: %v", e.Provider, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewSyncError creates a new SyncError
func NewSyncError(provider string, records []string, err error) *SyncError {
	return &SyncError{
		Provider: provider,
		Records:  records,
		Err:      err,
	}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsIntegrityError checks if an error is a fatal integrity violation
func IsIntegrityError(err error) bool {
	return errors.Is(err, ErrIntegrity)
}

// IsRateLimited checks if an error is a rate limit error
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsProviderUnavailable checks if an error indicates provider unavailability
func IsProviderUnavailable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapAPI wraps an error as an APIError
func WrapAPI(provider string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	return &APIError{
		Provider:   provider,
		StatusCode: statusCode,
		Message:    err.Error(),
		Err:        err,
	}
}
