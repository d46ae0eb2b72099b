package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"delta-gateway/internal/delta"
)

// Error codes with HTTP status mapping
const (
	// General errors
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeValidationFailed   = "VALIDATION_ERROR"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrCodeRequestTimeout     = "REQUEST_TIMEOUT"

	// Table log errors
	ErrCodeMalformedLogEntry    = "MALFORMED_LOG_ENTRY"
	ErrCodeCheckpointUnreadable = "CHECKPOINT_UNREADABLE"
	ErrCodeVersionNotFound      = "VERSION_NOT_FOUND"
	ErrCodeTableEmpty           = "TABLE_EMPTY"
	ErrCodeNonContiguousLog     = "NON_CONTIGUOUS_LOG"
	ErrCodeUnsupportedProtocol  = "UNSUPPORTED_PROTOCOL"
	ErrCodeStorageUnavailable   = "STORAGE_UNAVAILABLE"

	// Authentication errors
	ErrCodeTokenExpired = "TOKEN_EXPIRED"
	ErrCodeInvalidToken = "INVALID_TOKEN"

	// Validation error codes
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
)

// HTTPStatus maps error codes to HTTP status codes
var HTTPStatus = map[string]int{
	ErrCodeInvalidRequest:     http.StatusBadRequest,
	ErrCodeValidationFailed:   http.StatusUnprocessableEntity,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeInternalError:      http.StatusInternalServerError,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeRateLimitExceeded:  http.StatusTooManyRequests,
	ErrCodeRequestTimeout:     http.StatusGatewayTimeout,

	ErrCodeMalformedLogEntry:    http.StatusInternalServerError,
	ErrCodeCheckpointUnreadable: http.StatusInternalServerError,
	ErrCodeVersionNotFound:      http.StatusNotFound,
	ErrCodeTableEmpty:           http.StatusNotFound,
	ErrCodeNonContiguousLog:     http.StatusConflict,
	ErrCodeUnsupportedProtocol:  http.StatusUnprocessableEntity,
	ErrCodeStorageUnavailable:   http.StatusServiceUnavailable,

	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeInvalidToken: http.StatusUnauthorized,

	ErrCodeInvalidParameters: http.StatusBadRequest,
}

var deltaCodes = []struct {
	kind error
	code string
}{
	{delta.ErrUnsupportedProtocol, ErrCodeUnsupportedProtocol},
	{delta.ErrMalformedLogEntry, ErrCodeMalformedLogEntry},
	{delta.ErrCheckpointUnreadable, ErrCodeCheckpointUnreadable},
	{delta.ErrNonContiguousLog, ErrCodeNonContiguousLog},
	{delta.ErrVersionNotFound, ErrCodeVersionNotFound},
	{delta.ErrTableEmpty, ErrCodeTableEmpty},
	{delta.ErrStorageUnavailable, ErrCodeStorageUnavailable},
}

func deltaCode(err error) (string, bool) {
	kind := delta.Kind(err)
	for _, dc := range deltaCodes {
		if kind == dc.kind {
			return dc.code, true
		}
	}
	for _, dc := range deltaCodes {
		if errors.Is(err, dc.kind) {
			return dc.code, true
		}
	}
	return "", false
}

// AppError represents an application error with additional context
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details string                 `json:"details,omitempty"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
	Cause   error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// ErrorBuilder provides a fluent interface for creating errors
type ErrorBuilder struct {
	code    string
	message string
	details string
	meta    map[string]interface{}
	cause   error
}

// NewErrorBuilder creates a new error builder
func NewErrorBuilder(code string) *ErrorBuilder {
	return &ErrorBuilder{code: code}
}

// WithMessage sets the error message
func (eb *ErrorBuilder) WithMessage(message string) *ErrorBuilder {
	eb.message = message
	return eb
}

// WithDetails sets the error details
func (eb *ErrorBuilder) WithDetails(details string) *ErrorBuilder {
	eb.details = details
	return eb
}

// WithMeta attaches a structured value to the error
func (eb *ErrorBuilder) WithMeta(key string, value interface{}) *ErrorBuilder {
	if eb.meta == nil {
		eb.meta = make(map[string]interface{})
	}
	eb.meta[key] = value
	return eb
}

// WithCause sets the underlying error cause
func (eb *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	eb.cause = cause
	return eb
}

// Build constructs the final AppError
func (eb *ErrorBuilder) Build() *AppError {
	if eb.message == "" {
		eb.message = getDefaultMessage(eb.code)
	}

	return &AppError{
		Code:    eb.code,
		Message: eb.message,
		Details: eb.details,
		Meta:    eb.meta,
		Cause:   eb.cause,
	}
}

func getDefaultMessage(code string) string {
	messages := map[string]string{
		ErrCodeInvalidRequest:     "The request is invalid",
		ErrCodeValidationFailed:   "Validation failed",
		ErrCodeUnauthorized:       "Unauthorized access",
		ErrCodeForbidden:          "Access forbidden",
		ErrCodeNotFound:           "Resource not found",
		ErrCodeInternalError:      "Internal server error",
		ErrCodeServiceUnavailable: "Service temporarily unavailable",
		ErrCodeRateLimitExceeded:  "Rate limit exceeded",
		ErrCodeRequestTimeout:     "Request timed out",

		ErrCodeMalformedLogEntry:    "Transaction log entry is malformed",
		ErrCodeCheckpointUnreadable: "Checkpoint could not be read",
		ErrCodeVersionNotFound:      "Table version not found",
		ErrCodeTableEmpty:           "Table has no commits",
		ErrCodeNonContiguousLog:     "Transaction log has missing versions",
		ErrCodeUnsupportedProtocol:  "Table protocol is not supported by this reader",
		ErrCodeStorageUnavailable:   "Table storage is unavailable",

		ErrCodeTokenExpired: "Token expired",
		ErrCodeInvalidToken: "Invalid token",

		ErrCodeInvalidParameters: "Invalid parameters",
	}

	if msg, exists := messages[code]; exists {
		return msg
	}
	return "Unknown error"
}

// FromDeltaError converts a table loading error into an AppError. Unsupported
// protocols carry the blocking protocol in Meta.
func FromDeltaError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewErrorBuilder(ErrCodeRequestTimeout).WithCause(err).WithDetails(err.Error()).Build()
	}

	code, ok := deltaCode(err)
	if !ok {
		return NewErrorBuilder(ErrCodeInternalError).WithCause(err).WithDetails(err.Error()).Build()
	}

	b := NewErrorBuilder(code).WithCause(err).WithDetails(err.Error())
	var up *delta.UnsupportedProtocolError
	if errors.As(err, &up) {
		b.WithMeta("protocol", up.Protocol).WithMeta("maxReaderVersion", up.MaxReaderVersion)
		if len(up.MissingFeatures) > 0 {
			b.WithMeta("missingFeatures", up.MissingFeatures)
		}
	}
	return b.Build()
}

func NewNotFoundError(resource string) *AppError {
	return NewErrorBuilder(ErrCodeNotFound).
		WithMessage(fmt.Sprintf("%s not found", resource)).
		Build()
}

func NewValidationError(message string, details string) *AppError {
	return NewErrorBuilder(ErrCodeValidationFailed).
		WithMessage(message).
		WithDetails(details).
		Build()
}

func NewAuthenticationError(message string) *AppError {
	return NewErrorBuilder(ErrCodeUnauthorized).
		WithMessage(message).
		Build()
}

// IsErrorType checks if an error matches a specific error code
func IsErrorType(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetErrorStatus returns the HTTP status code for an error
func GetErrorStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if status, exists := HTTPStatus[appErr.Code]; exists {
			return status
		}
	}
	return http.StatusInternalServerError
}
