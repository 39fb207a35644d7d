// Package errors provides consolidated error definitions for metricsd.
//
// This file provides:
// - Sentinel errors for all error conditions
// - Error category checking functions
// - HTTP status mapping
// - Error wrapping utilities
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ============================================================================
// Sentinel errors for common conditions
// ============================================================================

var (
	// Validation errors
	ErrInvalidSnapshot = errors.New("invalid snapshot")
	ErrMissingField    = errors.New("missing required field")
	ErrInvalidWindow   = errors.New("invalid query window")

	// Storage errors
	ErrBackendUnavailable = errors.New("storage backend unavailable")
	ErrBackendClosed      = errors.New("storage backend is closed")
	ErrNotFound           = errors.New("not found")

	// Configuration errors
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrUnknownBackendType = errors.New("unknown backend type")
)

// ============================================================================
// Error category checks
// ============================================================================

// IsValidation returns true if err is a client-input error.
// Validation errors map to 4xx responses and are never logged as faults.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidSnapshot) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidWindow)
}

// IsUnavailable returns true if err indicates the storage backend
// could not be reached or timed out.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable) ||
		errors.Is(err, ErrBackendClosed)
}

// IsConfig returns true if err is a configuration error.
func IsConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrUnknownBackendType)
}

// ============================================================================
// HTTP status mapping
// ============================================================================

// HTTPStatus returns the HTTP status code for an error.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ============================================================================
// Wrapping utilities
// ============================================================================

// Wrap wraps an error with a message, preserving the error chain.
// Returns nil if err is nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with a formatted message.
// Returns nil if err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Unavailable wraps err as a backend-unavailable condition while keeping
// the original cause in the chain.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
}

// Is reports whether any error in err's chain matches target.
// Re-exported so callers don't need both error packages.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// Re-exported so callers don't need both error packages.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New creates a new error. Re-exported for convenience.
func New(text string) error {
	return errors.New(text)
}
