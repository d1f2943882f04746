package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	// Policy denials (expected, user-facing)
	ErrCodeRateLimit       ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeBlocked         ErrorCode = "IDENTIFIER_BLOCKED"
	ErrCodeFraudRestricted ErrorCode = "FRAUD_RESTRICTED"
	ErrCodeBotDetected     ErrorCode = "BOT_DETECTED"
	ErrCodeCSRFMismatch    ErrorCode = "CSRF_ORIGIN_MISMATCH"
	ErrCodeDeviceBlocked   ErrorCode = "DEVICE_BLOCKED"

	// Authentication
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"

	// Validation
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"

	// System
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeDependencyFailure  ErrorCode = "DEPENDENCY_FAILURE"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// RiskError represents a standardized error
type RiskError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	StatusCode int                    `json:"-"`
}

func (e RiskError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// New creates a new RiskError
func New(code ErrorCode, message string) *RiskError {
	return &RiskError{
		Code:       code,
		Message:    message,
		StatusCode: getHTTPStatusCode(code),
	}
}

// Wrap wraps an existing error with RiskError
func Wrap(err error, code ErrorCode, message string) *RiskError {
	return &RiskError{
		Code:       code,
		Message:    message,
		StatusCode: getHTTPStatusCode(code),
		Details:    map[string]interface{}{"original_error": err.Error()},
	}
}

// AddDetail adds a detail to the error
func (e *RiskError) AddDetail(key string, value interface{}) *RiskError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// getHTTPStatusCode maps error codes to HTTP status codes
func getHTTPStatusCode(code ErrorCode) int {
	switch code {
	case ErrCodeUnauthorized, ErrCodeInvalidToken:
		return http.StatusUnauthorized
	case ErrCodeForbidden, ErrCodeFraudRestricted, ErrCodeBotDetected, ErrCodeCSRFMismatch, ErrCodeDeviceBlocked:
		return http.StatusForbidden
	case ErrCodeRateLimit, ErrCodeBlocked:
		return http.StatusTooManyRequests
	case ErrCodeValidation, ErrCodeInvalidInput:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeServiceUnavailable, ErrCodeDependencyFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
