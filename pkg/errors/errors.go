package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes surfaced to clients
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodePermission        = "PERMISSION_DENIED"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeExternalService   = "EXTERNAL_SERVICE_ERROR"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeRateLimited       = "RATE_LIMIT_EXCEEDED"
	CodeInternal          = "INTERNAL_ERROR"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
	Status  int      `json:"-"`
	Err     error    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(e.Fields, ", "))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches AppErrors by code so sentinel values work with errors.Is
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// NewAppError creates a new AppError
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Validation creates a 400 error listing the offending fields
func Validation(message string, fields ...string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Fields:  fields,
		Status:  http.StatusBadRequest,
	}
}

// Permission creates a 403 error for role mismatches
func Permission(message string) *AppError {
	return &AppError{
		Code:    CodePermission,
		Message: message,
		Status:  http.StatusForbidden,
	}
}

// NotFound creates a 404 error
func NotFound(message string, err error) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: message,
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

// Conflict creates a 409 error
func Conflict(message string, err error) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
		Status:  http.StatusConflict,
		Err:     err,
	}
}

// InsufficientFunds creates a 409 error for wallet debits that exceed the balance
func InsufficientFunds(message string) *AppError {
	return &AppError{
		Code:    CodeInsufficientFunds,
		Message: message,
		Status:  http.StatusConflict,
	}
}

// ExternalService creates a 502 error for identity or text-generation failures
func ExternalService(message string, err error) *AppError {
	return &AppError{
		Code:    CodeExternalService,
		Message: message,
		Status:  http.StatusBadGateway,
		Err:     err,
	}
}

// Unauthorized creates a 401 error
func Unauthorized(message string, err error) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

// Internal creates a 500 error
func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Domain-specific errors

var (
	ErrProfileNotFound = NotFound("Profile not found", nil)
	ErrRideNotFound    = NotFound("Ride not found", nil)
	ErrRequestNotFound = NotFound("Request not found", nil)
	ErrThreadNotFound  = NotFound("Chat thread not found", nil)

	ErrNotDriver     = Permission("Only drivers can perform this action")
	ErrNotRider      = Permission("Only riders can perform this action")
	ErrNotOwner      = Permission("You do not own this resource")
	ErrNotRegistered = Permission("Complete your profile before using the marketplace")

	ErrRoleFixed          = Conflict("Role cannot be changed after registration", nil)
	ErrSeatsExhausted     = Conflict("No seats available on this ride", nil)
	ErrDuplicateRequest   = Conflict("You already have an active request for this ride", nil)
	ErrInvalidTransition  = Conflict("Request is not in a state that allows this action", nil)
	ErrRideNotActive      = Conflict("Ride is not active", nil)
	ErrAlreadySettled     = Conflict("Ride has already been settled for this rider", nil)
	ErrNoAcceptedRequest  = Conflict("No accepted request for this rider on this ride", nil)
	ErrRequestInProgress  = Conflict("A request with this Idempotency-Key is still in progress", nil)
	ErrInsufficientFunds  = InsufficientFunds("Insufficient funds")
	ErrSuggestionFailed   = ExternalService("Could not get suggestion", nil)
	ErrInvalidToken       = Unauthorized("Invalid authorization token", nil)
	ErrRateLimitExceeded  = &AppError{
		Code:    CodeRateLimited,
		Message: "Rate limit exceeded. Please try again later",
		Status:  http.StatusTooManyRequests,
	}
)

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// IsKind reports whether err is an AppError carrying the given code
func IsKind(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetAppError attempts to convert an error to AppError
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	// Return generic internal error if not an AppError
	return Internal("An unexpected error occurred", err)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
