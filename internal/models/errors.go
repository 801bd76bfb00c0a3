package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError
const (
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeNotFound           = "NOT_FOUND"
	CodeAlreadyExists      = "ALREADY_EXISTS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeValidation         = "VALIDATION_ERROR"
	CodeUpstream           = "UPSTREAM_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewInvalidTokenError(err error) *AppError {
	return &AppError{
		Code:    CodeInvalidToken,
		Message: "Invalid or expired token",
		Err:     err,
	}
}

func NewAlreadyExistsError(message string) *AppError {
	return &AppError{
		Code:    CodeAlreadyExists,
		Message: message,
	}
}

func NewInvalidCredentialsError() *AppError {
	return &AppError{
		Code:    CodeInvalidCredentials,
		Message: "Invalid credentials",
	}
}

// NewUpstreamError wraps a failure of the database, cache or object store.
func NewUpstreamError(op string, err error) *AppError {
	return &AppError{
		Code:    CodeUpstream,
		Message: op + " failed",
		Err:     err,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// IsCode reports whether err is an AppError with the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// StatusFor maps an error to the HTTP status its code implies.
func StatusFor(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeUnauthorized, CodeInvalidCredentials:
		return fiber.StatusUnauthorized
	case CodeInvalidToken, CodeValidation:
		return fiber.StatusBadRequest
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeAlreadyExists:
		return fiber.StatusConflict
	case CodeUpstream:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError creates a standardized error response including the wrapped cause.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	return respond(c, status, err, true)
}

// RespondWithErrorRedacted is RespondWithError without the wrapped cause.
func RespondWithErrorRedacted(c *fiber.Ctx, status int, err error) error {
	return respond(c, status, err, false)
}

func respond(c *fiber.Ctx, status int, err error, withDetails bool) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if withDetails && appErr.Err != nil {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: "Internal server error",
			Code:  CodeInternal,
		}
		if withDetails {
			response.Details = err.Error()
		}
	}

	return c.Status(status).JSON(response)
}
