package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("resource not found")

	ErrInvalidRequest = errors.New("invalid request")

	ErrInvalidArgument = errors.New("invalid argument")

	ErrValidation = errors.New("validation failed")

	ErrCreditLimitExceeded = errors.New("credit limit not enough")

	ErrLoanFullyPaid = errors.New("loan is already fully paid")

	ErrNoEligibleInstallments = errors.New("no installments eligible for payment")

	ErrAccessDenied = errors.New("access denied")

	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnsupportedOperation signals a guard misconfiguration, never a caller mistake.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	ErrDatabase = errors.New("database error")

	ErrInternalServer = errors.New("internal server error")
)

type NotFoundError struct {
	Entity string
	Key    any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %v", e.Entity, e.Key)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func NewNotFound(entity string, key any) error {
	return &NotFoundError{Entity: entity, Key: key}
}

type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func NewValidationError(field, message string) error {
	return fmt.Errorf("%w: %w", ErrValidation, &ValidationError{Field: field, Message: message})
}

// NewInvalidRequest wraps reason so that it matches ErrInvalidRequest and, when reason is
// itself an error, that error too.
func NewInvalidRequest(reason any) error {
	if err, ok := reason.(error); ok {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return fmt.Errorf("%w: %v", ErrInvalidRequest, reason)
}

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func WrapDatabaseError(cause error, message string) error {
	return &AppError{
		Code:    "DB_ERROR",
		Message: message,
		Cause:   fmt.Errorf("%w: %w", ErrDatabase, cause),
	}
}
