package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Authentication & Authorization
	ErrCodeAuthenticationRequired ErrorCode = "AUTHENTICATION_REQUIRED"
	ErrCodeAccessDenied           ErrorCode = "ACCESS_DENIED"

	// Validation
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// Resource
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"
	ErrCodeUnavailable  ErrorCode = "UNAVAILABLE"

	// Wallet & payouts
	ErrCodeInsufficientBalance  ErrorCode = "INSUFFICIENT_BALANCE"
	ErrCodePendingRequestExists ErrorCode = "PENDING_REQUEST_EXISTS"

	// Rate Limiting
	ErrCodeRateLimitExceeded      ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeRateLimiterUnavailable ErrorCode = "RATE_LIMITER_UNAVAILABLE"

	// Internal
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common error constructors

func AuthenticationRequired(message string) *AppError {
	return New(ErrCodeAuthenticationRequired, message)
}

func AccessDenied(message string) *AppError {
	return New(ErrCodeAccessDenied, message)
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("Invalid %s: %s", field, reason))
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("%s is required", field))
}

func InvalidState(action, status string) *AppError {
	return New(ErrCodeInvalidState, fmt.Sprintf("Cannot %s a session in status %s", action, status)).
		WithDetails(map[string]string{"action": action, "status": status})
}

func InvalidWithdrawalState(action, status string) *AppError {
	return New(ErrCodeInvalidState, fmt.Sprintf("Cannot %s a withdrawal request in status %s", action, status)).
		WithDetails(map[string]string{"action": action, "status": status})
}

func Unavailable(message string) *AppError {
	return New(ErrCodeUnavailable, message)
}

func InsufficientBalance() *AppError {
	return New(ErrCodeInsufficientBalance, "Insufficient balance")
}

func PendingRequestExists() *AppError {
	return New(ErrCodePendingRequestExists, "A pending withdrawal request already exists")
}

func RateLimitExceeded() *AppError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded")
}

func RateLimiterUnavailable(cause error) *AppError {
	return Wrap(ErrCodeRateLimiterUnavailable, "Rate limiter unavailable, try again later", cause)
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func Database(cause error) *AppError {
	return Wrap(ErrCodeDatabase, "Database error", cause)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeInternal
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code
}
