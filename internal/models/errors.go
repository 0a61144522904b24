package models

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Error codes surfaced to clients.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeEmailNotConfirmed = "EMAIL_NOT_CONFIRMED"
	CodeNotFound          = "NOT_FOUND"
	CodeTimeout           = "TIMEOUT"
	CodeNetwork           = "NETWORK_ERROR"
	CodeDatabase          = "DATABASE_ERROR"
	CodeInternal          = "INTERNAL_ERROR"
	CodeUnavailable       = "BACKEND_UNAVAILABLE"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
	Action  string `json:"action,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	// Action names the corrective step offered to the user (retry, resend_confirmation, edit).
	Action string
	Err    error
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
func NewNotFoundError(resource string, id any) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Action:  "edit",
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewEmailNotConfirmedError(email string) *AppError {
	return &AppError{
		Code:    CodeEmailNotConfirmed,
		Message: fmt.Sprintf("Please confirm your email address (%s) before signing in.", email),
		Action:  "resend_confirmation",
	}
}

func NewTimeoutError(err error) *AppError {
	return &AppError{
		Code:    CodeTimeout,
		Message: "Connection timeout. Please check your internet connection and try again.",
		Action:  "retry",
		Err:     err,
	}
}

func NewUnavailableError(message string) *AppError {
	return &AppError{
		Code:    CodeUnavailable,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// ErrorKind is the coarse bucket used to pick user-facing copy.
type ErrorKind string

const (
	ErrorKindNetwork  ErrorKind = "network"
	ErrorKindDatabase ErrorKind = "database"
	ErrorKindUnknown  ErrorKind = "unknown"
)

var networkMarkers = []string{
	"network", "fetch", "connection refused", "connection reset", "no such host",
	"timeout", "timed out", "dial tcp", "i/o timeout", "eof", "unreachable",
}

var databaseMarkers = []string{
	"database", "relation", "sql", "duplicate key", "violates", "constraint",
	"column", "no such table", "syntax error", "deadlock",
}

// Classify buckets an error by inspecting its type and message.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrorKindUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorKindNetwork
	}
	msg := strings.ToLower(err.Error())
	for _, m := range networkMarkers {
		if strings.Contains(msg, m) {
			return ErrorKindNetwork
		}
	}
	for _, m := range databaseMarkers {
		if strings.Contains(msg, m) {
			return ErrorKindDatabase
		}
	}
	return ErrorKindUnknown
}

// UserMessage returns the copy shown to the user for a failed action.
func UserMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != CodeInternal {
		return appErr.Message
	}
	switch Classify(err) {
	case ErrorKindNetwork:
		return "We couldn't reach the server. Check your connection and try again."
	case ErrorKindDatabase:
		return "Something went wrong while saving your data. Please try again shortly."
	default:
		return "Something unexpected happened. Please try again."
	}
}

// WrapBackendError converts a raw backend error into an AppError with a code
// derived from Classify.
func WrapBackendError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	code := CodeInternal
	switch Classify(err) {
	case ErrorKindNetwork:
		code = CodeNetwork
	case ErrorKindDatabase:
		code = CodeDatabase
	}
	return &AppError{Code: code, Message: UserMessage(err), Action: "retry", Err: err}
}

// StatusFor maps an error to an HTTP status.
func StatusFor(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeUnauthorized:
		return fiber.StatusUnauthorized
	case CodeEmailNotConfirmed:
		return fiber.StatusForbidden
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeTimeout:
		return fiber.StatusGatewayTimeout
	case CodeNetwork, CodeUnavailable:
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
			Error:  appErr.Message,
			Code:   appErr.Code,
			Action: appErr.Action,
		}
		if appErr.Err != nil && appErr.Code != CodeInternal {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
