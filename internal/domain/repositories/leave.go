package repositories

import (
	"context"
	"time"

	"github.com/absentia/absentia/internal/domain/entities"
)

// LeaveRequestRepository defines the interface for leave request data access
type LeaveRequestRepository interface {
	// Create stores a new leave request
	Create(ctx context.Context, req *entities.LeaveRequest) error

	// GetByID retrieves a leave request by ID
	GetByID(ctx context.Context, id string) (*entities.LeaveRequest, error)

	// ListByUser retrieves a user's leave requests, newest first
	ListByUser(ctx context.Context, userID string) ([]*entities.LeaveRequest, error)

	// ListByUsers retrieves leave requests for a set of users (a manager's team)
	ListByUsers(ctx context.Context, userIDs []string) ([]*entities.LeaveRequest, error)

	// ListByStatus retrieves all leave requests in a given status
	ListByStatus(ctx context.Context, status entities.LeaveStatus) ([]*entities.LeaveRequest, error)

	// UpdateStatus records a decision on a request; the update only applies
	// while the request is still pending
	UpdateStatus(ctx context.Context, id string, status entities.LeaveStatus, decidedBy string, comment string, decidedAt time.Time) error

	// ApproveAndDebit records an approval and debits the covering balance in
	// one transaction. The approval only applies while the request is still
	// pending; losing the race surfaces as ErrLeaveRequestNotFound and
	// leaves the balance untouched.
	ApproveAndDebit(ctx context.Context, req *entities.LeaveRequest, decidedBy string, comment string, decidedAt time.Time) error

	// CountOverlapping counts a user's pending or approved requests whose date
	// range overlaps [start, end]
	CountOverlapping(ctx context.Context, userID string, start, end time.Time) (int, error)

	// AggregateByYear sums business days per user, type, and status for a year
	AggregateByYear(ctx context.Context, year int) ([]*LeaveAggregate, error)
}

// LeaveAggregate is one row of the yearly report
type LeaveAggregate struct {
	UserID    string               `json:"user_id" db:"user_id"`
	LeaveType entities.LeaveType   `json:"leave_type" db:"leave_type"`
	Status    entities.LeaveStatus `json:"status" db:"status"`
	Requests  int                  `json:"requests" db:"requests"`
	TotalDays int                  `json:"total_days" db:"total_days"`
}
