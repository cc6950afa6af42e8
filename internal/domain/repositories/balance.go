package repositories

import (
	"context"

	"github.com/absentia/absentia/internal/domain/entities"
)

// BalanceRepository defines the interface for leave balance data access
type BalanceRepository interface {
	// GetOrCreate returns the balance row for (user, type, year), creating it
	// with the given entitlement when absent
	GetOrCreate(ctx context.Context, userID string, leaveType entities.LeaveType, year int, entitledDays int) (*entities.Balance, error)

	// AddUsedDays debits (positive delta) or credits (negative delta) used days
	AddUsedDays(ctx context.Context, userID string, leaveType entities.LeaveType, year int, delta int) error

	// ListByUser retrieves all balance rows for a user and year
	ListByUser(ctx context.Context, userID string, year int) ([]*entities.Balance, error)
}
