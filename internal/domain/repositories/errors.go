package repositories

import "errors"

// Domain-specific repository errors
var (
	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = errors.New("user not found")

	// ErrLeaveRequestNotFound is returned when a leave request cannot be found
	ErrLeaveRequestNotFound = errors.New("leave request not found")

	// ErrAbsenceNotFound is returned when an absence record cannot be found
	ErrAbsenceNotFound = errors.New("absence not found")

	// ErrConversionNotFound is returned when a conversion request cannot be found
	ErrConversionNotFound = errors.New("conversion request not found")

	// ErrConversionPending is returned when an absence already has a pending conversion request
	ErrConversionPending = errors.New("absence already has a pending conversion request")

	// ErrBalanceNotFound is returned when a balance row cannot be found
	ErrBalanceNotFound = errors.New("balance not found")
)
