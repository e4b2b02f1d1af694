// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/refl-model/backend/internal/calculators"
	"github.com/refl-model/backend/internal/measurement"
	"github.com/refl-model/backend/internal/models"
	"github.com/refl-model/backend/internal/session"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error constructors for consistent error handling

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(message string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    "CONFLICT",
		Message: message,
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewServiceUnavailableError creates a 503 Service Unavailable error
func NewServiceUnavailableError(message string) *APIError {
	return &APIError{
		Status:  http.StatusServiceUnavailable,
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
	}
}

// NewUnprocessableError creates a 422 error for a well-formed request the
// model rejects.
func NewUnprocessableError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusUnprocessableEntity,
		Code:    "UNPROCESSABLE",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// FromError maps a domain error onto its API error.
func FromError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, measurement.ErrNotFound),
		errors.Is(err, calculators.ErrUnknownEntity):
		return &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, session.ErrBlueprint),
		errors.Is(err, measurement.ErrLengthMismatch),
		errors.Is(err, calculators.ErrLengthMismatch),
		errors.Is(err, calculators.ErrUnknownCalculator):
		return NewBadRequestError("invalid request", err)
	case errors.Is(err, models.ErrOutOfBounds),
		errors.Is(err, models.ErrIndexOutOfRange),
		errors.Is(err, models.ErrAlreadyMember),
		errors.Is(err, session.ErrUnknownLayer),
		errors.Is(err, measurement.ErrNoData),
		errors.Is(err, calculators.ErrEmptyModel),
		errors.Is(err, calculators.ErrInvalidCell),
		errors.Is(err, calculators.ErrUnknownAttribute):
		return NewUnprocessableError("rejected by the model", err)
	case errors.Is(err, calculators.ErrUnsupported):
		return NewConflictError(err.Error())
	case errors.Is(err, session.ErrNoStore):
		return NewServiceUnavailableError(err.Error())
	}
	return NewInternalError("an unexpected error occurred", err)
}

// ErrorHandler middleware for Echo
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError

	switch e := err.(type) {
	case *APIError:
		apiErr = e
	case *echo.HTTPError:
		apiErr = &APIError{
			Status:  e.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", e.Message),
		}
	default:
		apiErr = FromError(err)
		if apiErr.Status == http.StatusInternalServerError && !ShowErrorDetails {
			apiErr.Details = ""
		}
	}

	// Send JSON response
	if !c.Response().Committed {
		c.JSON(apiErr.Status, apiErr)
	}
}

// ShowErrorDetails controls whether internal error causes reach clients.
var ShowErrorDetails = true

// RespondWithError is a helper to respond with an APIError
func RespondWithError(c echo.Context, err *APIError) error {
	return c.JSON(err.Status, err)
}
