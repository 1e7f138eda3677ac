// Package errors provides the error taxonomy used across estate-sync.
// Typed errors carry enough context to tell which record or which pass
// phase failed, and each one maps onto a sentinel so callers can branch
// with errors.Is.
package errors

import (
	"errors"
	"fmt"
)

// Aliases for the standard library helpers so callers need one import.
var (
	New    = errors.New
	Is     = errors.Is
	As     = errors.As
	Join   = errors.Join
	Unwrap = errors.Unwrap
)

// Sentinel errors
var (
	// ErrInvalidInput indicates that an incoming record was malformed
	ErrInvalidInput = errors.New("invalid input")

	// ErrPersistence indicates that a store call failed
	ErrPersistence = errors.New("persistence failure")

	// ErrUnavailable indicates that the store could not be reached or configured
	ErrUnavailable = errors.New("store unavailable")

	// ErrSource indicates that the listing source could not deliver a batch
	ErrSource = errors.New("listing source failure")
)

// Phase names one step of a reconciliation pass.
type Phase string

// Pass phases, in the order they run.
const (
	PhaseReset  Phase = "reset"
	PhaseLookup Phase = "lookup"
	PhaseInsert Phase = "insert"
	PhaseUpdate Phase = "update"
)

// ValidationError represents an incoming record that cannot be reconciled.
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

// PersistenceError reports a failed store call, tagged with the pass phase.
type PersistenceError struct {
	Phase Phase
	Err   error
}

// Error implements the error interface
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s phase failed: %v", e.Phase, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// NewPersistenceError creates a new PersistenceError
func NewPersistenceError(phase Phase, err error) *PersistenceError {
	return &PersistenceError{Phase: phase, Err: err}
}

// ConfigurationError represents a store that is unreachable or misconfigured.
type ConfigurationError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, msg)
	}
	return fmt.Sprintf("configuration error: %s", msg)
}

// Unwrap implements errors.Unwrap
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrUnavailable
}

// NewConfigurationError creates a new ConfigurationError
func NewConfigurationError(component, message string, err error) *ConfigurationError {
	return &ConfigurationError{Component: component, Message: message, Err: err}
}

// SourceError represents a failure talking to the listing source.
type SourceError struct {
	URL        string
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *SourceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("listing source %s returned status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("listing source %s: %v", e.URL, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *SourceError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *SourceError) Is(target error) bool {
	return target == ErrSource
}

// NewSourceError creates a new SourceError
func NewSourceError(url string, statusCode int, err error) *SourceError {
	return &SourceError{URL: url, StatusCode: statusCode, Err: err}
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsPersistenceError checks if an error came from a store call
func IsPersistenceError(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// IsUnavailable checks if an error is a configuration/unavailable error
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// PhaseOf returns the pass phase carried by err, or "" if there is none.
func PhaseOf(err error) Phase {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return pe.Phase
	}
	return ""
}
