package entities

import "time"

// User represents an internal user record. The record is created on first
// sight of a token subject from the identity provider; email and display
// name mirror the provider's claims, while role and manager link are owned
// by this system.
type User struct {
	ID              string    `json:"id" db:"id"`
	ExternalSubject string    `json:"external_subject" db:"external_subject"` // provider's 'sub' claim, unique
	Email           string    `json:"email" db:"email"`
	DisplayName     string    `json:"display_name" db:"display_name"`
	Role            Role      `json:"role" db:"role"`
	ManagerID       *string   `json:"manager_id,omitempty" db:"manager_id"` // self-referential, nullable
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Role represents user roles in the system
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleHR       Role = "hr"
)

// ValidRole reports whether the role is one of the known roles
func ValidRole(r Role) bool {
	switch r {
	case RoleEmployee, RoleManager, RoleHR:
		return true
	}
	return false
}

// HasRole checks if the user has a specific role
func (u *User) HasRole(role Role) bool {
	return u.Role == role
}

// IsHR returns true if the user is in the HR role
func (u *User) IsHR() bool {
	return u.Role == RoleHR
}

// CanDecide reports whether the user may approve or reject requests
func (u *User) CanDecide() bool {
	return u.Role == RoleManager || u.Role == RoleHR
}
