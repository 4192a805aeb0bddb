package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Katha error code.
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"      // 400
	ErrUnauthorized        ErrorCode = "UNAUTHORIZED"         // 401
	ErrForbidden           ErrorCode = "FORBIDDEN"            // 403
	ErrNotFound            ErrorCode = "NOT_FOUND"            // 404
	ErrInvalidInviteCode   ErrorCode = "INVALID_INVITE_CODE"  // 404
	ErrConflict            ErrorCode = "CONFLICT"             // 409 (reserved for optimistic concurrency)
	ErrUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE" // 502
	ErrInternal            ErrorCode = "INTERNAL"             // 500
)

// KathaError represents a structured error with code, status, and details.
type KathaError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *KathaError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *KathaError) Unwrap() error { return e.Cause }

// NewInvalidRequest creates a 400 error for malformed input.
func NewInvalidRequest(msg string) *KathaError {
	return &KathaError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidField creates a 400 error naming the offending field.
func NewInvalidField(field, msg string) *KathaError {
	return &KathaError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: fmt.Sprintf("%s: %s", field, msg),
		Details: map[string]any{"field": field},
	}
}

// NewUnauthorized creates a 401 error for missing or invalid credentials.
func NewUnauthorized(msg string) *KathaError {
	return &KathaError{
		Code:    ErrUnauthorized,
		Status:  401,
		Message: msg,
	}
}

// NewForbidden creates a 403 error for an authenticated caller acting outside
// their family or role.
func NewForbidden(msg string) *KathaError {
	return &KathaError{
		Code:    ErrForbidden,
		Status:  403,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing record.
func NewNotFound(kind, identifier string) *KathaError {
	return &KathaError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewInvalidInviteCode creates a 404 error for an invite code that does not
// resolve to a family.
func NewInvalidInviteCode() *KathaError {
	return &KathaError{
		Code:    ErrInvalidInviteCode,
		Status:  404,
		Message: "invite code does not match any family",
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *KathaError {
	return &KathaError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewUpstreamUnavailable creates a 502 error for a failed or timed-out call
// to an external collaborator (storage, transcription, AI).
func NewUpstreamUnavailable(service string, err error) *KathaError {
	return &KathaError{
		Code:    ErrUpstreamUnavailable,
		Status:  502,
		Message: fmt.Sprintf("%s unavailable", service),
		Details: map[string]any{"service": service},
		Cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the original error is kept in Details for logging.
func NewInternal(err error) *KathaError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &KathaError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
		Cause:   err,
	}
}

// Is checks if an error is (or wraps) a KathaError with the given code.
func Is(err error, code ErrorCode) bool {
	var kErr *KathaError
	if stderrors.As(err, &kErr) {
		return kErr.Code == code
	}
	return false
}

// As extracts the KathaError from err, if any.
func As(err error) (*KathaError, bool) {
	var kErr *KathaError
	if stderrors.As(err, &kErr) {
		return kErr, true
	}
	return nil, false
}
