package repositories

import (
	"context"

	"github.com/absentia/absentia/internal/domain/entities"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// UpsertByExternalSubject inserts a user for a never-seen external subject,
	// or updates the mirrored email/display name for an existing one, preserving
	// role and manager link. Returns the stored row either way. The conflict
	// resolution on external_subject is the sole concurrency-safety mechanism
	// for simultaneous first-time resolutions.
	UpsertByExternalSubject(ctx context.Context, subject, email, displayName string) (*entities.User, error)

	// GetByID retrieves a user by their internal ID
	GetByID(ctx context.Context, id string) (*entities.User, error)

	// GetByExternalSubject retrieves a user by the provider's subject identifier
	GetByExternalSubject(ctx context.Context, subject string) (*entities.User, error)

	// UpdateRole changes a user's role
	UpdateRole(ctx context.Context, id string, role entities.Role) error

	// UpdateManager changes a user's manager link; nil clears it
	UpdateManager(ctx context.Context, id string, managerID *string) error

	// ListByManager retrieves the direct reports of a manager
	ListByManager(ctx context.Context, managerID string) ([]*entities.User, error)

	// List retrieves all users with pagination
	List(ctx context.Context, limit, offset int) ([]*entities.User, int64, error)
}
