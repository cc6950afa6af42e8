package entities

import "time"

// LeaveType enumerates the kinds of leave an employee can request
type LeaveType string

const (
	LeaveVacation LeaveType = "vacation"
	LeaveSick     LeaveType = "sick"
	LeavePersonal LeaveType = "personal"
	LeaveUnpaid   LeaveType = "unpaid"
)

// ValidLeaveType reports whether the leave type is one of the known types
func ValidLeaveType(t LeaveType) bool {
	switch t {
	case LeaveVacation, LeaveSick, LeavePersonal, LeaveUnpaid:
		return true
	}
	return false
}

// LeaveStatus enumerates the lifecycle states of a leave request
type LeaveStatus string

const (
	LeavePending   LeaveStatus = "pending"
	LeaveApproved  LeaveStatus = "approved"
	LeaveRejected  LeaveStatus = "rejected"
	LeaveCancelled LeaveStatus = "cancelled"
)

// LeaveRequest represents a request for time off over an inclusive date range
type LeaveRequest struct {
	ID              string      `json:"id" db:"id"`
	UserID          string      `json:"user_id" db:"user_id"`
	Type            LeaveType   `json:"type" db:"leave_type"`
	StartDate       time.Time   `json:"start_date" db:"start_date"`
	EndDate         time.Time   `json:"end_date" db:"end_date"`
	BusinessDays    int         `json:"business_days" db:"business_days"`
	Reason          string      `json:"reason,omitempty" db:"reason"`
	Status          LeaveStatus `json:"status" db:"status"`
	DecidedBy       *string     `json:"decided_by,omitempty" db:"decided_by"`
	DecisionComment *string     `json:"decision_comment,omitempty" db:"decision_comment"`
	DecidedAt       *time.Time  `json:"decided_at,omitempty" db:"decided_at"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

// IsPending reports whether the request is still awaiting a decision
func (r *LeaveRequest) IsPending() bool {
	return r.Status == LeavePending
}

// Decided reports whether the request reached a terminal state
func (r *LeaveRequest) Decided() bool {
	return r.Status == LeaveApproved || r.Status == LeaveRejected || r.Status == LeaveCancelled
}
