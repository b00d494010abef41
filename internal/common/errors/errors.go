// Package errors provides the standardized error taxonomy for the portal
// core. Every guard failure is returned as a typed *StandardError; the
// transport layer maps codes to HTTP statuses and the caller-facing
// messages stay distinguishable (a lost claim race is never reported as
// a generic failure).
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Business-rule failures. Never retried.
	ErrCodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyClaimed    ErrorCode = "ALREADY_CLAIMED"
	ErrCodePriceLocked       ErrorCode = "PRICE_LOCKED"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeResultDocMissing  ErrorCode = "RESULT_DOCUMENT_MISSING"

	// Authorization failures.
	ErrCodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"
	ErrCodeForbidden            ErrorCode = "FORBIDDEN"

	// External dependency failures. Safe for the caller to retry.
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeBlobUnavailable  ErrorCode = "BLOB_UNAVAILABLE"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewValidationError creates a non-retryable input validation error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable missing-record error. The
// caller should refresh its view; the record may have been relisted or
// removed concurrently.
func NewNotFoundError(resource, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAlreadyClaimedError reports a lost accept race. Recoverable by
// re-querying the pool, not by retrying the same claim.
func NewAlreadyClaimedError(applicationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAlreadyClaimed,
		Message:   "Application already claimed by another operator",
		Details:   fmt.Sprintf("applicationId: %s", applicationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPriceLockedError reports a price edit attempted after assignment.
func NewPriceLockedError(applicationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodePriceLocked,
		Message:   "Price cannot be edited after acceptance",
		Details:   fmt.Sprintf("applicationId: %s", applicationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTransitionError reports a status change the state machine
// forbids. The requested state is never coerced to a legal one.
func NewInvalidTransitionError(from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   "Illegal status transition",
		Details:   fmt.Sprintf("%s -> %s", from, to),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewResultDocMissingError reports a completion attempt without a
// qualifying result document in the ledger.
func NewResultDocMissingError(applicationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResultDocMissing,
		Message:   "Completion requires a result document",
		Details:   fmt.Sprintf("applicationId: %s", applicationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuthenticationError creates a non-retryable authentication failure.
func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthenticationFailed,
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewForbiddenError reports a caller lacking the role or ownership the
// operation requires.
func NewForbiddenError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeForbidden,
		Message:   "Caller not authorized for this operation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreUnavailableError wraps a record store failure. Retryable from
// the caller's side; the core itself never retries.
func NewStoreUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreUnavailable,
		Message:   "Record store unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewBlobUnavailableError wraps an object storage failure.
func NewBlobUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBlobUnavailable,
		Message:   "Object storage unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// HasCode reports whether err is a *StandardError carrying code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code == code
	}
	return false
}

// IsRetryable reports whether err represents a transient dependency
// failure. Business-rule and authorization errors are never retryable.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}
