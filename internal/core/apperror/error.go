// Package apperror provides structured error handling following RFC 7807 Problem Details.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal         = "INTERNAL_ERROR"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"

	// Validation errors (400)
	CodeValidation = "VALIDATION_ERROR"

	// Authentication (401)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Preconditions
	CodeRegisterClosed      = "REGISTER_CLOSED"
	CodeRegisterAlreadyOpen = "REGISTER_ALREADY_OPEN"

	// Not found (404) and gone (410)
	CodeNotFound     = "NOT_FOUND"
	CodeHoldInactive = "HOLD_INACTIVE"

	// Conflicts
	CodeNumberingConflict = "NUMBERING_CONFLICT"
	CodeIdempotency       = "IDEMPOTENCY_CONFLICT"
)

// AppError is the standard error type for the platform.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, ids, ...)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewFieldValidation creates a validation error carrying per-field messages.
func NewFieldValidation(fields map[string]string) *AppError {
	return NewValidation("invalid input").WithDetail("fields", fields)
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewHoldInactive is returned when a held sale exists but can no longer be recalled or deleted.
func NewHoldInactive(holdID, status string) *AppError {
	return &AppError{
		Code:       CodeHoldInactive,
		Message:    "Held sale is no longer available",
		HTTPStatus: http.StatusGone,
		Details:    map[string]any{"hold_id": holdID, "status": status},
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewRegisterClosed is returned by the register gate when the actor has no open session.
func NewRegisterClosed(actorID string) *AppError {
	return &AppError{
		Code:       CodeRegisterClosed,
		Message:    "No open cash register session. Open a register before processing sales.",
		HTTPStatus: http.StatusPreconditionFailed,
		Details:    map[string]any{"actor_id": actorID},
	}
}

// NewRegisterAlreadyOpen is returned when opening a register while one is already open.
func NewRegisterAlreadyOpen(actorID, sessionID string) *AppError {
	return &AppError{
		Code:       CodeRegisterAlreadyOpen,
		Message:    "A cash register session is already open",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"actor_id": actorID, "session_id": sessionID},
	}
}

// NewNumberingConflict is returned when bill numbering could not settle within the retry budget.
// The failure is transient; the client may retry the request.
func NewNumberingConflict(scope string, attempts int) *AppError {
	return &AppError{
		Code:       CodeNumberingConflict,
		Message:    "Could not allocate a bill number, please retry",
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"scope": scope, "attempts": attempts},
	}
}

// NewStoreUnavailable wraps a connectivity failure of the backing store.
func NewStoreUnavailable(err error) *AppError {
	return &AppError{
		Code:       CodeStoreUnavailable,
		Message:    "Backing store is unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewIdempotencyConflict creates error when operation is already in progress
func NewIdempotencyConflict(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Operation already in progress or completed",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewIdempotencyMismatch is returned when the same idempotency key is reused for
// a different request (different user/operation/body hash).
func NewIdempotencyMismatch(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Idempotency key mismatch",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// --- Helper functions ---

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsHoldInactive checks if error is CodeHoldInactive
func IsHoldInactive(err error) bool {
	return HasCode(err, CodeHoldInactive)
}

// IsStoreUnavailable checks if error is CodeStoreUnavailable
func IsStoreUnavailable(err error) bool {
	return HasCode(err, CodeStoreUnavailable)
}
