package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"go-naturalness-inspector/internal/analyzer"
	"go-naturalness-inspector/internal/imaging"
	"go-naturalness-inspector/internal/pristine"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeInvalidImage ErrorType = "invalid_image"
	ErrorTypeModel        ErrorType = "model"
	ErrorTypeNetwork      ErrorType = "network"
	ErrorTypeProcessing   ErrorType = "processing"
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeInternal     ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

func newAppError(t ErrorType, status int, message string, cause error) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: status,
		Cause:      cause,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return newAppError(ErrorTypeValidation, http.StatusBadRequest, message, cause)
}

// NewInvalidImageError is returned when a decoded image cannot be scored.
func NewInvalidImageError(message string, cause error) *AppError {
	return newAppError(ErrorTypeInvalidImage, http.StatusUnprocessableEntity, message, cause)
}

// NewModelError reports a pristine model that could not be loaded or used.
func NewModelError(message string, cause error) *AppError {
	return newAppError(ErrorTypeModel, http.StatusServiceUnavailable, message, cause)
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, cause error) *AppError {
	return newAppError(ErrorTypeNetwork, http.StatusBadGateway, message, cause)
}

// NewProcessingError creates a new processing error
func NewProcessingError(message string, cause error) *AppError {
	return newAppError(ErrorTypeProcessing, http.StatusUnprocessableEntity, message, cause)
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, cause error) *AppError {
	return newAppError(ErrorTypeTimeout, http.StatusGatewayTimeout, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, http.StatusInternalServerError, message, cause)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *AppError {
	return newAppError(ErrorTypeNotFound, http.StatusNotFound, message, cause)
}

// IsType checks if the error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// FromError classifies an error returned by the scoring core. Errors that
// already carry an AppError are returned unchanged.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	var invalid *imaging.InvalidImageError
	var singular *pristine.SingularModelError
	var mismatch *pristine.DimensionMismatchError
	switch {
	case stderrors.As(err, &invalid):
		return NewInvalidImageError(invalid.Reason, err)
	case stderrors.As(err, &singular), stderrors.As(err, &mismatch),
		stderrors.Is(err, pristine.ErrInvalidModel), stderrors.Is(err, pristine.ErrLayoutMismatch),
		stderrors.Is(err, analyzer.ErrNoModel):
		return NewModelError("pristine model unusable", err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return NewTimeoutError("scoring timed out", err)
	case stderrors.Is(err, context.Canceled):
		return NewTimeoutError("scoring cancelled", err)
	}
	var unknown *analyzer.UnknownPipelineError
	if stderrors.As(err, &unknown) {
		return NewValidationError(unknown.Error(), err)
	}
	return NewInternalError("scoring failed", err)
}
