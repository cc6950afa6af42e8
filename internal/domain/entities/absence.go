package entities

import "time"

// Absence represents a recorded, unplanned absence (e.g. calling in sick)
// that may later be converted into a leave request
type Absence struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	StartDate time.Time `json:"start_date" db:"start_date"`
	EndDate   time.Time `json:"end_date" db:"end_date"`
	Note      string    `json:"note,omitempty" db:"note"`
	Converted bool      `json:"converted" db:"converted"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ConversionStatus enumerates the lifecycle states of a conversion request
type ConversionStatus string

const (
	ConversionPending  ConversionStatus = "pending"
	ConversionApproved ConversionStatus = "approved"
	ConversionRejected ConversionStatus = "rejected"
)

// ConversionRequest asks for a recorded absence to be converted into leave
// of a given type. At most one pending conversion request may exist per
// absence.
type ConversionRequest struct {
	ID        string           `json:"id" db:"id"`
	AbsenceID string           `json:"absence_id" db:"absence_id"`
	UserID    string           `json:"user_id" db:"user_id"`
	LeaveType LeaveType        `json:"leave_type" db:"leave_type"`
	Status    ConversionStatus `json:"status" db:"status"`
	DecidedBy *string          `json:"decided_by,omitempty" db:"decided_by"`
	DecidedAt *time.Time       `json:"decided_at,omitempty" db:"decided_at"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}
