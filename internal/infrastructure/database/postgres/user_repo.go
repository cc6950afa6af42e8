package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/absentia/absentia/internal/domain/entities"
	"github.com/absentia/absentia/internal/domain/repositories"
	"github.com/absentia/absentia/internal/pkg/idgen"
	"github.com/absentia/absentia/internal/pkg/metrics"
)

// UserRepository implements the UserRepository interface for PostgreSQL
type UserRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(db *sqlx.DB) repositories.UserRepository {
	return &UserRepository{
		db:  db,
		log: slog.Default().With(slog.String("repo", "user")),
	}
}

// userRow represents a user as stored in the database
type userRow struct {
	ID              string         `db:"id"`
	ExternalSubject string         `db:"external_subject"`
	Email           sql.NullString `db:"email"`
	DisplayName     sql.NullString `db:"display_name"`
	Role            string         `db:"role"`
	ManagerID       sql.NullString `db:"manager_id"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// toEntity converts a userRow to a domain entity
func (r *userRow) toEntity() *entities.User {
	user := &entities.User{
		ID:              r.ID,
		ExternalSubject: r.ExternalSubject,
		Email:           r.Email.String, // Empty string if NULL
		DisplayName:     r.DisplayName.String,
		Role:            entities.Role(r.Role),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}

	if r.ManagerID.Valid {
		user.ManagerID = &r.ManagerID.String
	}

	return user
}

const userColumns = `id, external_subject, email, display_name, role, manager_id, created_at, updated_at`

// UpsertByExternalSubject inserts a user on first sight of a subject, or
// refreshes the mirrored email and display name on conflict. Role and the
// manager link are never touched by the upsert. The unique constraint on
// external_subject makes simultaneous first-time resolutions converge on a
// single row.
func (r *UserRepository) UpsertByExternalSubject(ctx context.Context, subject, email, displayName string) (*entities.User, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("user", "upsert_by_subject", time.Since(start), 1, err)
	}()

	query := `
		INSERT INTO users (id, external_subject, email, display_name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (external_subject) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + userColumns

	var row userRow
	err = r.db.GetContext(ctx, &row, query,
		idgen.GenerateID(), subject, email, displayName, string(entities.RoleEmployee), time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return row.toEntity(), nil
}

// GetByID retrieves a user by their internal ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("user", "get_by_id", time.Since(start), rowCount, err)
	}()

	var row userRow
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	err = r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			err = repositories.ErrUserNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	rowCount = 1
	return row.toEntity(), nil
}

// GetByExternalSubject retrieves a user by the provider's subject identifier
func (r *UserRepository) GetByExternalSubject(ctx context.Context, subject string) (*entities.User, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("user", "get_by_subject", time.Since(start), rowCount, err)
	}()

	var row userRow
	query := `SELECT ` + userColumns + ` FROM users WHERE external_subject = $1`

	err = r.db.GetContext(ctx, &row, query, subject)
	if err != nil {
		if err == sql.ErrNoRows {
			err = repositories.ErrUserNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user by subject: %w", err)
	}

	rowCount = 1
	return row.toEntity(), nil
}

// UpdateRole changes a user's role
func (r *UserRepository) UpdateRole(ctx context.Context, id string, role entities.Role) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("user", "update_role", time.Since(start), rowsAffected, err)
	}()

	r.log.Debug("updating user role",
		slog.String("id", id),
		slog.String("role", string(role)))

	query := `UPDATE users SET role = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, string(role), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		err = repositories.ErrUserNotFound
		return err
	}

	return nil
}

// UpdateManager changes a user's manager link; nil clears it
func (r *UserRepository) UpdateManager(ctx context.Context, id string, managerID *string) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("user", "update_manager", time.Since(start), rowsAffected, err)
	}()

	var manager sql.NullString
	if managerID != nil {
		manager = sql.NullString{String: *managerID, Valid: true}
	}

	query := `UPDATE users SET manager_id = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, manager, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update manager: %w", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		err = repositories.ErrUserNotFound
		return err
	}

	return nil
}

// ListByManager retrieves the direct reports of a manager
func (r *UserRepository) ListByManager(ctx context.Context, managerID string) ([]*entities.User, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("user", "list_by_manager", time.Since(start), rowCount, err)
	}()

	var rows []userRow
	query := `SELECT ` + userColumns + ` FROM users WHERE manager_id = $1 ORDER BY display_name`

	err = r.db.SelectContext(ctx, &rows, query, managerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	rowCount = int64(len(rows))
	users := make([]*entities.User, len(rows))
	for i, row := range rows {
		users[i] = row.toEntity()
	}

	return users, nil
}

// List retrieves all users with pagination
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*entities.User, int64, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("user", "list", time.Since(start), rowCount, err)
	}()

	var total int64
	err = r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var rows []userRow
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	err = r.db.SelectContext(ctx, &rows, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	rowCount = int64(len(rows))
	users := make([]*entities.User, len(rows))
	for i, row := range rows {
		users[i] = row.toEntity()
	}

	return users, total, nil
}
