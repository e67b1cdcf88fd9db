package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError represents an application error with additional context
type AppError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	StatusCode int         `json:"-"`
	Internal   error       `json:"-"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

// Unwrap returns the internal error for errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Is reports whether target is an AppError with the same code, so callers can
// write errors.Is(err, errors.ErrQuotaExceeded).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Error codes. The device flow codes follow RFC 8628 naming so CLI clients can
// switch on them directly.
const (
	ErrCodeInternal                = "internal_error"
	ErrCodeBadRequest              = "bad_request"
	ErrCodeUnauthorized            = "unauthorized"
	ErrCodeForbidden               = "forbidden"
	ErrCodeNotFound                = "not_found"
	ErrCodeConflict                = "conflict"
	ErrCodeValidation              = "validation_error"
	ErrCodeDatabase                = "database_error"
	ErrCodeInvalidSignature        = "invalid_signature"
	ErrCodeExpired                 = "expired_token"
	ErrCodeAlreadyConsumed         = "already_used"
	ErrCodeQuotaExceeded           = "quota_exceeded"
	ErrCodeRateLimited             = "rate_limited"
	ErrCodeSlowDown                = "slow_down"
	ErrCodeUpstreamAuth            = "upstream_auth_failure"
	ErrCodeWebhookSignatureInvalid = "invalid_webhook_signature"
	ErrCodeServiceUnavailable      = "service_unavailable"
	ErrCodeLicenseInactive         = "license_inactive"
)

// Sentinels for errors.Is. Never return these directly; use the constructors.
var (
	ErrNotFound                = &AppError{Code: ErrCodeNotFound}
	ErrConflict                = &AppError{Code: ErrCodeConflict}
	ErrInvalidSignature        = &AppError{Code: ErrCodeInvalidSignature}
	ErrExpired                 = &AppError{Code: ErrCodeExpired}
	ErrAlreadyConsumed         = &AppError{Code: ErrCodeAlreadyConsumed}
	ErrQuotaExceeded           = &AppError{Code: ErrCodeQuotaExceeded}
	ErrRateLimited             = &AppError{Code: ErrCodeRateLimited}
	ErrSlowDown                = &AppError{Code: ErrCodeSlowDown}
	ErrUpstreamAuth            = &AppError{Code: ErrCodeUpstreamAuth}
	ErrWebhookSignatureInvalid = &AppError{Code: ErrCodeWebhookSignatureInvalid}
)

// New creates a new AppError
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with an AppError
func Wrap(err error, code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Internal:   err,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// Is is errors.Is from the standard library
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As extracts an *AppError from err, wrapping anything else as an internal error.
func As(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal("Internal server error", err)
}

// Common error constructors

// Internal creates an internal server error
func Internal(message string, err error) *AppError {
	return Wrap(err, ErrCodeInternal, message, http.StatusInternalServerError)
}

// BadRequest creates a bad request error
func BadRequest(message string) *AppError {
	return New(ErrCodeBadRequest, message, http.StatusBadRequest)
}

// Unauthorized creates an unauthorized error
func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

// Forbidden creates a forbidden error
func Forbidden(message string) *AppError {
	return New(ErrCodeForbidden, message, http.StatusForbidden)
}

// NotFound creates a not found error
func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// Conflict creates a conflict error
func Conflict(message string) *AppError {
	return New(ErrCodeConflict, message, http.StatusConflict)
}

// ValidationError creates a validation error
func ValidationError(message string, details interface{}) *AppError {
	return New(ErrCodeValidation, message, http.StatusBadRequest).WithDetails(details)
}

// DatabaseError creates a database error
func DatabaseError(message string, err error) *AppError {
	return Wrap(err, ErrCodeDatabase, message, http.StatusInternalServerError)
}

// InvalidSignature is returned for tampered or forged license keys
func InvalidSignature() *AppError {
	return New(ErrCodeInvalidSignature, "Invalid license key signature", http.StatusUnauthorized)
}

// Expired is returned when a pairing session or CSRF state is gone
func Expired(message string) *AppError {
	return New(ErrCodeExpired, message, http.StatusBadRequest)
}

// AlreadyConsumed is returned on replay of a one-time code
func AlreadyConsumed(message string) *AppError {
	return New(ErrCodeAlreadyConsumed, message, http.StatusBadRequest)
}

// QuotaExceeded is returned when a license has no quota left
func QuotaExceeded(message string) *AppError {
	return New(ErrCodeQuotaExceeded, message, http.StatusForbidden)
}

// RateLimited creates a rate limited error
func RateLimited(message string) *AppError {
	return New(ErrCodeRateLimited, message, http.StatusTooManyRequests)
}

// SlowDown tells a polling device client to back off
func SlowDown() *AppError {
	return New(ErrCodeSlowDown, "Polling too frequently, slow down", http.StatusTooManyRequests)
}

// UpstreamAuthFailure creates an identity provider failure
func UpstreamAuthFailure(provider string, err error) *AppError {
	return Wrap(err, ErrCodeUpstreamAuth,
		fmt.Sprintf("Failed to verify %s account", provider),
		http.StatusBadRequest)
}

// UpstreamAPIFailure creates a payment provider failure
func UpstreamAPIFailure(provider string, err error) *AppError {
	return Wrap(err, ErrCodeUpstreamAuth,
		fmt.Sprintf("Failed to communicate with %s API", provider),
		http.StatusBadGateway)
}

// WebhookSignatureInvalid is returned when a billing webhook cannot be verified
func WebhookSignatureInvalid(err error) *AppError {
	return Wrap(err, ErrCodeWebhookSignatureInvalid, "Invalid webhook signature", http.StatusBadRequest)
}

// ServiceUnavailable creates a service unavailable error
func ServiceUnavailable(message string) *AppError {
	return New(ErrCodeServiceUnavailable, message, http.StatusServiceUnavailable)
}
