package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("Error returns formatted string", func(t *testing.T) {
		err := New(ErrCodeNotFound, "Session not found")
		assert.Equal(t, "NOT_FOUND: Session not found", err.Error())
	})

	t.Run("Error with cause includes cause", func(t *testing.T) {
		cause := errors.New("database connection failed")
		err := Wrap(ErrCodeDatabase, "Database error", cause)
		assert.Contains(t, err.Error(), "DATABASE_ERROR")
		assert.Contains(t, err.Error(), "Database error")
		assert.Contains(t, err.Error(), "database connection failed")
	})

	t.Run("WithCause adds cause to error", func(t *testing.T) {
		cause := errors.New("original error")
		err := New(ErrCodeInternal, "Something went wrong").WithCause(cause)
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("WithDetails adds details to error", func(t *testing.T) {
		details := map[string]string{"field": "amount", "reason": "too small"}
		err := New(ErrCodeValidation, "Validation failed").WithDetails(details)
		assert.Equal(t, details, err.Details)
	})
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name         string
		constructor  func() *AppError
		expectedCode ErrorCode
	}{
		{"AuthenticationRequired", func() *AppError { return AuthenticationRequired("test") }, ErrCodeAuthenticationRequired},
		{"AccessDenied", func() *AppError { return AccessDenied("test") }, ErrCodeAccessDenied},
		{"NotFound", func() *AppError { return NotFound("Session") }, ErrCodeNotFound},
		{"ValidationError", func() *AppError { return ValidationError("test") }, ErrCodeValidation},
		{"InvalidInput", func() *AppError { return InvalidInput("kind", "unknown") }, ErrCodeValidation},
		{"MissingRequired", func() *AppError { return MissingRequired("provider_id") }, ErrCodeValidation},
		{"InvalidState", func() *AppError { return InvalidState("join", "completed") }, ErrCodeInvalidState},
		{"Unavailable", func() *AppError { return Unavailable("offline") }, ErrCodeUnavailable},
		{"InsufficientBalance", func() *AppError { return InsufficientBalance() }, ErrCodeInsufficientBalance},
		{"PendingRequestExists", func() *AppError { return PendingRequestExists() }, ErrCodePendingRequestExists},
		{"RateLimitExceeded", func() *AppError { return RateLimitExceeded() }, ErrCodeRateLimitExceeded},
		{"RateLimiterUnavailable", func() *AppError { return RateLimiterUnavailable(nil) }, ErrCodeRateLimiterUnavailable},
		{"Internal", func() *AppError { return Internal("test") }, ErrCodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.constructor()
			assert.Equal(t, tc.expectedCode, err.Code)
			assert.NotEmpty(t, err.Message)
		})
	}
}

func TestDatabase(t *testing.T) {
	t.Run("wraps database error", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Database(cause)
		assert.Equal(t, ErrCodeDatabase, err.Code)
		assert.Equal(t, cause, err.Unwrap())
	})
}

func TestInvalidStateDetails(t *testing.T) {
	err := InvalidState("end", "pending")
	assert.Equal(t, "Cannot end a session in status pending", err.Message)
	assert.Equal(t, map[string]string{"action": "end", "status": "pending"}, err.Details)
}

func TestIsAppError(t *testing.T) {
	t.Run("returns true for AppError", func(t *testing.T) {
		err := New(ErrCodeNotFound, "test")
		assert.True(t, IsAppError(err))
	})

	t.Run("returns false for standard error", func(t *testing.T) {
		err := errors.New("standard error")
		assert.False(t, IsAppError(err))
	})

	t.Run("returns true for fmt-wrapped AppError", func(t *testing.T) {
		wrapped := fmt.Errorf("reserve: %w", InsufficientBalance())
		assert.True(t, IsAppError(wrapped))
	})
}

func TestAsAppError(t *testing.T) {
	t.Run("extracts AppError", func(t *testing.T) {
		original := New(ErrCodeNotFound, "Session not found")
		extracted, ok := AsAppError(original)
		assert.True(t, ok)
		assert.Equal(t, original, extracted)
	})

	t.Run("returns false for non-AppError", func(t *testing.T) {
		err := errors.New("standard error")
		extracted, ok := AsAppError(err)
		assert.False(t, ok)
		assert.Nil(t, extracted)
	})
}

func TestGetCode(t *testing.T) {
	t.Run("returns code for AppError", func(t *testing.T) {
		err := New(ErrCodeNotFound, "test")
		assert.Equal(t, ErrCodeNotFound, GetCode(err))
	})

	t.Run("returns ErrCodeInternal for standard error", func(t *testing.T) {
		err := errors.New("standard error")
		assert.Equal(t, ErrCodeInternal, GetCode(err))
	})

	t.Run("Is matches wrapped codes", func(t *testing.T) {
		err := fmt.Errorf("payout: %w", PendingRequestExists())
		assert.True(t, Is(err, ErrCodePendingRequestExists))
		assert.False(t, Is(err, ErrCodeNotFound))
	})
}

func TestNotFoundMessage(t *testing.T) {
	err := NotFound("Provider")
	assert.Equal(t, "Provider not found", err.Message)

	err = NotFound("Wallet")
	assert.Equal(t, "Wallet not found", err.Message)
}
