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
	"github.com/absentia/absentia/internal/pkg/metrics"
)

// LeaveRequestRepository implements the LeaveRequestRepository interface for PostgreSQL
type LeaveRequestRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewLeaveRequestRepository creates a new PostgreSQL leave request repository
func NewLeaveRequestRepository(db *sqlx.DB) repositories.LeaveRequestRepository {
	return &LeaveRequestRepository{
		db:  db,
		log: slog.Default().With(slog.String("repo", "leave_request")),
	}
}

// leaveRequestRow represents a leave request as stored in the database
type leaveRequestRow struct {
	ID              string         `db:"id"`
	UserID          string         `db:"user_id"`
	LeaveType       string         `db:"leave_type"`
	StartDate       time.Time      `db:"start_date"`
	EndDate         time.Time      `db:"end_date"`
	BusinessDays    int            `db:"business_days"`
	Reason          sql.NullString `db:"reason"`
	Status          string         `db:"status"`
	DecidedBy       sql.NullString `db:"decided_by"`
	DecisionComment sql.NullString `db:"decision_comment"`
	DecidedAt       sql.NullTime   `db:"decided_at"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// toEntity converts a leaveRequestRow to a domain entity
func (r *leaveRequestRow) toEntity() *entities.LeaveRequest {
	req := &entities.LeaveRequest{
		ID:           r.ID,
		UserID:       r.UserID,
		Type:         entities.LeaveType(r.LeaveType),
		StartDate:    r.StartDate,
		EndDate:      r.EndDate,
		BusinessDays: r.BusinessDays,
		Reason:       r.Reason.String,
		Status:       entities.LeaveStatus(r.Status),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}

	if r.DecidedBy.Valid {
		req.DecidedBy = &r.DecidedBy.String
	}
	if r.DecisionComment.Valid {
		req.DecisionComment = &r.DecisionComment.String
	}
	if r.DecidedAt.Valid {
		req.DecidedAt = &r.DecidedAt.Time
	}

	return req
}

const leaveRequestColumns = `id, user_id, leave_type, start_date, end_date, business_days,
       reason, status, decided_by, decision_comment, decided_at, created_at, updated_at`

// Create stores a new leave request
func (r *LeaveRequestRepository) Create(ctx context.Context, req *entities.LeaveRequest) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("leave_request", "create", time.Since(start), 1, err)
	}()

	r.log.Debug("creating leave request",
		slog.String("id", req.ID),
		slog.String("user_id", req.UserID),
		slog.String("type", string(req.Type)))

	query := `
		INSERT INTO leave_requests (
			id, user_id, leave_type, start_date, end_date, business_days,
			reason, status, decided_by, decision_comment, decided_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	var reason, decidedBy, comment sql.NullString
	var decidedAt sql.NullTime
	if req.Reason != "" {
		reason = sql.NullString{String: req.Reason, Valid: true}
	}
	if req.DecidedBy != nil {
		decidedBy = sql.NullString{String: *req.DecidedBy, Valid: true}
	}
	if req.DecisionComment != nil {
		comment = sql.NullString{String: *req.DecisionComment, Valid: true}
	}
	if req.DecidedAt != nil {
		decidedAt = sql.NullTime{Time: *req.DecidedAt, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, query,
		req.ID, req.UserID, string(req.Type), req.StartDate, req.EndDate, req.BusinessDays,
		reason, string(req.Status), decidedBy, comment, decidedAt, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create leave request: %w", err)
	}

	return nil
}

// GetByID retrieves a leave request by ID
func (r *LeaveRequestRepository) GetByID(ctx context.Context, id string) (*entities.LeaveRequest, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("leave_request", "get_by_id", time.Since(start), rowCount, err)
	}()

	var row leaveRequestRow
	query := `SELECT ` + leaveRequestColumns + ` FROM leave_requests WHERE id = $1`

	err = r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			err = repositories.ErrLeaveRequestNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to get leave request: %w", err)
	}

	rowCount = 1
	return row.toEntity(), nil
}

// ListByUser retrieves a user's leave requests, newest first
func (r *LeaveRequestRepository) ListByUser(ctx context.Context, userID string) ([]*entities.LeaveRequest, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("leave_request", "list_by_user", time.Since(start), rowCount, err)
	}()

	var rows []leaveRequestRow
	query := `SELECT ` + leaveRequestColumns + ` FROM leave_requests WHERE user_id = $1 ORDER BY created_at DESC`

	err = r.db.SelectContext(ctx, &rows, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list leave requests: %w", err)
	}

	rowCount = int64(len(rows))
	return rowsToEntities(rows), nil
}

// ListByUsers retrieves leave requests for a set of users
func (r *LeaveRequestRepository) ListByUsers(ctx context.Context, userIDs []string) ([]*entities.LeaveRequest, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("leave_request", "list_by_users", time.Since(start), rowCount, err)
	}()

	if len(userIDs) == 0 {
		return []*entities.LeaveRequest{}, nil
	}

	query, args, err := sqlx.In(
		`SELECT `+leaveRequestColumns+` FROM leave_requests WHERE user_id IN (?) ORDER BY created_at DESC`,
		userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	query = r.db.Rebind(query)

	var rows []leaveRequestRow
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list team leave requests: %w", err)
	}

	rowCount = int64(len(rows))
	return rowsToEntities(rows), nil
}

// ListByStatus retrieves all leave requests in a given status
func (r *LeaveRequestRepository) ListByStatus(ctx context.Context, status entities.LeaveStatus) ([]*entities.LeaveRequest, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("leave_request", "list_by_status", time.Since(start), rowCount, err)
	}()

	var rows []leaveRequestRow
	query := `SELECT ` + leaveRequestColumns + ` FROM leave_requests WHERE status = $1 ORDER BY created_at DESC`

	err = r.db.SelectContext(ctx, &rows, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list leave requests by status: %w", err)
	}

	rowCount = int64(len(rows))
	return rowsToEntities(rows), nil
}

// UpdateStatus records a decision on a request. The WHERE clause restricts
// the update to pending rows so a request can only leave the pending state
// once, even under concurrent deciders.
func (r *LeaveRequestRepository) UpdateStatus(ctx context.Context, id string, status entities.LeaveStatus, decidedBy string, comment string, decidedAt time.Time) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("leave_request", "update_status", time.Since(start), rowsAffected, err)
	}()

	var decisionComment sql.NullString
	if comment != "" {
		decisionComment = sql.NullString{String: comment, Valid: true}
	}

	query := `
		UPDATE leave_requests SET
			status = $1,
			decided_by = $2,
			decision_comment = $3,
			decided_at = $4,
			updated_at = $4
		WHERE id = $5 AND status = 'pending'`

	result, err := r.db.ExecContext(ctx, query, string(status), decidedBy, decisionComment, decidedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update leave request status: %w", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		err = repositories.ErrLeaveRequestNotFound
		return err
	}

	return nil
}

// ApproveAndDebit approves a pending request and debits the covering balance
// in one transaction. The guarded UPDATE runs first; a racing decider sees
// zero rows and nothing else happens.
func (r *LeaveRequestRepository) ApproveAndDebit(ctx context.Context, req *entities.LeaveRequest, decidedBy string, comment string, decidedAt time.Time) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("leave_request", "approve_and_debit", time.Since(start), rowsAffected, err)
	}()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var decisionComment sql.NullString
	if comment != "" {
		decisionComment = sql.NullString{String: comment, Valid: true}
	}

	result, execErr := tx.ExecContext(ctx, `
		UPDATE leave_requests SET
			status = 'approved',
			decided_by = $1,
			decision_comment = $2,
			decided_at = $3,
			updated_at = $3
		WHERE id = $4 AND status = 'pending'`,
		decidedBy, decisionComment, decidedAt, req.ID)
	if execErr != nil {
		err = execErr
		return fmt.Errorf("failed to approve leave request: %w", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		err = repositories.ErrLeaveRequestNotFound
		return err
	}

	debit, execErr := tx.ExecContext(ctx, `
		UPDATE balances SET used_days = used_days + $1
		WHERE user_id = $2 AND leave_type = $3 AND year = $4`,
		req.BusinessDays, req.UserID, string(req.Type), req.StartDate.Year())
	if execErr != nil {
		err = execErr
		return fmt.Errorf("failed to debit balance: %w", err)
	}

	debited, execErr := debit.RowsAffected()
	if execErr != nil {
		err = execErr
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if debited == 0 {
		err = repositories.ErrBalanceNotFound
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit approval: %w", err)
	}

	return nil
}

// CountOverlapping counts a user's pending or approved requests whose date
// range overlaps [start, end]
func (r *LeaveRequestRepository) CountOverlapping(ctx context.Context, userID string, rangeStart, rangeEnd time.Time) (int, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("leave_request", "count_overlapping", time.Since(start), 1, err)
	}()

	var count int
	query := `
		SELECT COUNT(*) FROM leave_requests
		WHERE user_id = $1
		  AND status IN ('pending', 'approved')
		  AND start_date <= $3
		  AND end_date >= $2`

	err = r.db.GetContext(ctx, &count, query, userID, rangeStart, rangeEnd)
	if err != nil {
		return 0, fmt.Errorf("failed to count overlapping requests: %w", err)
	}

	return count, nil
}

// AggregateByYear sums business days per user, type, and status for a year
func (r *LeaveRequestRepository) AggregateByYear(ctx context.Context, year int) ([]*repositories.LeaveAggregate, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("leave_request", "aggregate_by_year", time.Since(start), rowCount, err)
	}()

	var rows []*repositories.LeaveAggregate
	query := `
		SELECT user_id, leave_type, status,
		       COUNT(*) AS requests,
		       COALESCE(SUM(business_days), 0) AS total_days
		FROM leave_requests
		WHERE EXTRACT(YEAR FROM start_date) = $1
		GROUP BY user_id, leave_type, status
		ORDER BY user_id, leave_type, status`

	err = r.db.SelectContext(ctx, &rows, query, year)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate leave requests: %w", err)
	}

	rowCount = int64(len(rows))
	return rows, nil
}

func rowsToEntities(rows []leaveRequestRow) []*entities.LeaveRequest {
	reqs := make([]*entities.LeaveRequest, len(rows))
	for i := range rows {
		reqs[i] = rows[i].toEntity()
	}
	return reqs
}
