package apperrors

import (
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrValidation      ErrorType = "VALIDATION"
	ErrUnauthenticated ErrorType = "UNAUTHENTICATED"
	ErrForbidden       ErrorType = "FORBIDDEN"
	ErrNotFound        ErrorType = "NOT_FOUND"
	ErrInvalidState    ErrorType = "INVALID_STATE"
	ErrUpstream        ErrorType = "UPSTREAM_ERROR"
	ErrInternal        ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application.
// The HTTP layer renders it as {"detail": Message} with HTTPStatus.
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"detail"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
	}
}

func NewValidation(msg string) *AppError {
	return New(ErrValidation, msg, nil)
}

func NewUnauthenticated(msg string) *AppError {
	return New(ErrUnauthenticated, msg, nil)
}

func NewForbidden(msg string) *AppError {
	return New(ErrForbidden, msg, nil)
}

func NewNotFound(msg string) *AppError {
	return New(ErrNotFound, msg, nil)
}

func NewInvalidState(msg string) *AppError {
	return New(ErrInvalidState, msg, nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrValidation, ErrInvalidState:
		return http.StatusBadRequest
	case ErrUnauthenticated:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	case ErrUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
