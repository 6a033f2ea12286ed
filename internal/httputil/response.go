package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	apperrors "github.com/minutely/consult-server/internal/errors"
)

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string              `json:"error"`
	Code    apperrors.ErrorCode `json:"code"`
	Details any                 `json:"details,omitempty"`
}

// WriteError writes an AppError as an HTTP response with appropriate status code
func WriteError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		// Wrap unknown errors as internal errors
		appErr = apperrors.Internal("An unexpected error occurred")
	}

	if details, ok := appErr.Details.(map[string]int); ok && appErr.Code == apperrors.ErrCodeRateLimitExceeded {
		if retry, ok := details["retry_after_seconds"]; ok {
			w.Header().Set("Retry-After", strconv.Itoa(retry))
		}
	}

	WriteErrorWithStatus(w, StatusFromCode(appErr.Code), appErr)
}

// WriteErrorWithStatus writes an error with a specific HTTP status code
func WriteErrorWithStatus(w http.ResponseWriter, status int, err *apperrors.AppError) {
	response := ErrorResponse{
		Error:   err.Message,
		Code:    err.Code,
		Details: err.Details,
	}
	WriteJSON(w, status, response)
}

// DecodeJSON decodes a single JSON object from the request body into dst.
// Unknown fields, mistyped fields and trailing data are rejected.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperrors.ValidationError("Request body is required")
		case errors.As(err, &typeErr):
			return apperrors.InvalidInput(typeErr.Field, fmt.Sprintf("expected %s", typeErr.Type))
		case errors.As(err, &maxBytesErr):
			return apperrors.ValidationError("Request body too large")
		default:
			return apperrors.ValidationError("Invalid request body").WithCause(err)
		}
	}

	if dec.More() {
		return apperrors.ValidationError("Request body must contain a single JSON object")
	}
	return nil
}

// StatusFromCode maps ErrorCode to HTTP status code
func StatusFromCode(code apperrors.ErrorCode) int {
	switch code {
	// 400 Bad Request
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest

	// 401 Unauthorized
	case apperrors.ErrCodeAuthenticationRequired:
		return http.StatusUnauthorized

	// 403 Forbidden
	case apperrors.ErrCodeAccessDenied:
		return http.StatusForbidden

	// 404 Not Found
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound

	// 409 Conflict
	case apperrors.ErrCodeInvalidState,
		apperrors.ErrCodeUnavailable,
		apperrors.ErrCodePendingRequestExists:
		return http.StatusConflict

	// 422 Unprocessable Entity
	case apperrors.ErrCodeInsufficientBalance:
		return http.StatusUnprocessableEntity

	// 429 Too Many Requests
	case apperrors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests

	// 503 Service Unavailable
	case apperrors.ErrCodeRateLimiterUnavailable:
		return http.StatusServiceUnavailable

	// 500 Internal Server Error
	case apperrors.ErrCodeInternal,
		apperrors.ErrCodeDatabase:
		return http.StatusInternalServerError

	default:
		return http.StatusInternalServerError
	}
}
