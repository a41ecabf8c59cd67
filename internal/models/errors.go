// Package models contains data structures for the application's domain models.
package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError and returned in API responses.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeValidation         = "VALIDATION_ERROR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeDuplicateAnswer    = "DUPLICATE_ANSWER"
	CodeExpired            = "EXPIRED"
	CodeConflict           = "CONFLICT"
	CodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

// Sentinel errors for errors.Is matching by code.
var (
	ErrNotFound           = &AppError{Code: CodeNotFound}
	ErrValidation         = &AppError{Code: CodeValidation}
	ErrUnauthorized       = &AppError{Code: CodeUnauthorized}
	ErrForbidden          = &AppError{Code: CodeForbidden}
	ErrDuplicateAnswer    = &AppError{Code: CodeDuplicateAnswer}
	ErrExpired            = &AppError{Code: CodeExpired}
	ErrConflict           = &AppError{Code: CodeConflict}
	ErrBackendUnavailable = &AppError{Code: CodeBackendUnavailable}
	ErrInternal           = &AppError{Code: CodeInternal}
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

// Is reports code equality so errors.Is(err, ErrNotFound) works across wrapping.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
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

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
	}
}

// NewDuplicateAnswerError signals that the calling party already answered the
// slot. The stored answer is untouched; clients treat this as a quiet no-op.
func NewDuplicateAnswerError() *AppError {
	return &AppError{
		Code:    CodeDuplicateAnswer,
		Message: "You have already answered this question",
	}
}

func NewExpiredError(what string) *AppError {
	return &AppError{
		Code:    CodeExpired,
		Message: fmt.Sprintf("%s is no longer available", what),
	}
}

// NewConflictError marks a lost write race. The daily game generator resolves
// these internally by re-reading the winner; it must never reach a client.
func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
	}
}

func NewBackendUnavailableError(err error) *AppError {
	return &AppError{
		Code:    CodeBackendUnavailable,
		Message: "Service temporarily unavailable",
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

// HTTPStatus maps an application error to the status it is served with.
func HTTPStatus(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeUnauthorized:
		return fiber.StatusUnauthorized
	case CodeForbidden:
		return fiber.StatusForbidden
	case CodeDuplicateAnswer, CodeConflict:
		return fiber.StatusConflict
	case CodeExpired:
		return fiber.StatusGone
	case CodeBackendUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}

// RespondWithAppError responds using the status derived from the error's code.
func RespondWithAppError(c *fiber.Ctx, err error) error {
	return RespondWithError(c, HTTPStatus(err), err)
}
