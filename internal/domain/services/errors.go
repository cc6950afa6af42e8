package services

import (
	"errors"

	"github.com/absentia/absentia/internal/domain/repositories"
)

// Service-level errors. Handlers map these onto HTTP status codes.
var (
	// ErrInvalidInput is returned when a request fails business validation
	ErrInvalidInput = errors.New("invalid input")

	// ErrForbidden is returned when the acting user lacks the required role
	// or does not own the resource
	ErrForbidden = errors.New("forbidden")

	// ErrSelfDecision is returned when a user tries to decide their own request
	ErrSelfDecision = errors.New("cannot decide own request")

	// ErrNotPending is returned when a decision targets a request that has
	// already reached a terminal state
	ErrNotPending = errors.New("request is not pending")

	// ErrInsufficientBalance is returned when approval would exceed the
	// user's remaining balance for the leave type and year
	ErrInsufficientBalance = errors.New("insufficient leave balance")

	// ErrOverlappingRequest is returned when a new request overlaps an
	// existing pending or approved one
	ErrOverlappingRequest = errors.New("overlapping leave request exists")

	// ErrAlreadyConverted is returned when a conversion targets an absence
	// that was already converted into leave
	ErrAlreadyConverted = errors.New("absence already converted")
)

// IsNotFound reports whether the error indicates a missing resource
func IsNotFound(err error) bool {
	return errors.Is(err, repositories.ErrUserNotFound) ||
		errors.Is(err, repositories.ErrLeaveRequestNotFound) ||
		errors.Is(err, repositories.ErrAbsenceNotFound) ||
		errors.Is(err, repositories.ErrConversionNotFound) ||
		errors.Is(err, repositories.ErrBalanceNotFound)
}

// IsConflict reports whether the error indicates a state conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrNotPending) ||
		errors.Is(err, ErrOverlappingRequest) ||
		errors.Is(err, ErrAlreadyConverted) ||
		errors.Is(err, repositories.ErrConversionPending)
}
