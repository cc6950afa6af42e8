package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/absentia/absentia/internal/domain/entities"
	"github.com/absentia/absentia/internal/domain/repositories"
	"github.com/absentia/absentia/internal/pkg/metrics"
)

// AbsenceRepository implements the AbsenceRepository interface for PostgreSQL
type AbsenceRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewAbsenceRepository creates a new PostgreSQL absence repository
func NewAbsenceRepository(db *sqlx.DB) repositories.AbsenceRepository {
	return &AbsenceRepository{
		db:  db,
		log: slog.Default().With(slog.String("repo", "absence")),
	}
}

// absenceRow represents an absence as stored in the database
type absenceRow struct {
	ID        string         `db:"id"`
	UserID    string         `db:"user_id"`
	StartDate time.Time      `db:"start_date"`
	EndDate   time.Time      `db:"end_date"`
	Note      sql.NullString `db:"note"`
	Converted bool           `db:"converted"`
	CreatedAt time.Time      `db:"created_at"`
}

func (r *absenceRow) toEntity() *entities.Absence {
	return &entities.Absence{
		ID:        r.ID,
		UserID:    r.UserID,
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		Note:      r.Note.String,
		Converted: r.Converted,
		CreatedAt: r.CreatedAt,
	}
}

// conversionRow represents a conversion request as stored in the database
type conversionRow struct {
	ID        string         `db:"id"`
	AbsenceID string         `db:"absence_id"`
	UserID    string         `db:"user_id"`
	LeaveType string         `db:"leave_type"`
	Status    string         `db:"status"`
	DecidedBy sql.NullString `db:"decided_by"`
	DecidedAt sql.NullTime   `db:"decided_at"`
	CreatedAt time.Time      `db:"created_at"`
}

func (r *conversionRow) toEntity() *entities.ConversionRequest {
	conv := &entities.ConversionRequest{
		ID:        r.ID,
		AbsenceID: r.AbsenceID,
		UserID:    r.UserID,
		LeaveType: entities.LeaveType(r.LeaveType),
		Status:    entities.ConversionStatus(r.Status),
		CreatedAt: r.CreatedAt,
	}

	if r.DecidedBy.Valid {
		conv.DecidedBy = &r.DecidedBy.String
	}
	if r.DecidedAt.Valid {
		conv.DecidedAt = &r.DecidedAt.Time
	}

	return conv
}

const conversionColumns = `id, absence_id, user_id, leave_type, status, decided_by, decided_at, created_at`

// CreateAbsence records a new absence
func (r *AbsenceRepository) CreateAbsence(ctx context.Context, absence *entities.Absence) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("absence", "create", time.Since(start), 1, err)
	}()

	r.log.Debug("recording absence",
		slog.String("id", absence.ID),
		slog.String("user_id", absence.UserID))

	var note sql.NullString
	if absence.Note != "" {
		note = sql.NullString{String: absence.Note, Valid: true}
	}

	query := `
		INSERT INTO absences (id, user_id, start_date, end_date, note, converted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.db.ExecContext(ctx, query,
		absence.ID, absence.UserID, absence.StartDate, absence.EndDate, note, absence.Converted, absence.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record absence: %w", err)
	}

	return nil
}

// GetAbsence retrieves an absence by ID
func (r *AbsenceRepository) GetAbsence(ctx context.Context, id string) (*entities.Absence, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("absence", "get_by_id", time.Since(start), rowCount, err)
	}()

	var row absenceRow
	query := `SELECT id, user_id, start_date, end_date, note, converted, created_at FROM absences WHERE id = $1`

	err = r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			err = repositories.ErrAbsenceNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to get absence: %w", err)
	}

	rowCount = 1
	return row.toEntity(), nil
}

// ListAbsencesByUser retrieves a user's absences, newest first
func (r *AbsenceRepository) ListAbsencesByUser(ctx context.Context, userID string) ([]*entities.Absence, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("absence", "list_by_user", time.Since(start), rowCount, err)
	}()

	var rows []absenceRow
	query := `SELECT id, user_id, start_date, end_date, note, converted, created_at
	          FROM absences WHERE user_id = $1 ORDER BY created_at DESC`

	err = r.db.SelectContext(ctx, &rows, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list absences: %w", err)
	}

	rowCount = int64(len(rows))
	absences := make([]*entities.Absence, len(rows))
	for i := range rows {
		absences[i] = rows[i].toEntity()
	}

	return absences, nil
}

// MarkConverted flags an absence as converted into leave
func (r *AbsenceRepository) MarkConverted(ctx context.Context, absenceID string) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("absence", "mark_converted", time.Since(start), rowsAffected, err)
	}()

	query := `UPDATE absences SET converted = true WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, absenceID)
	if err != nil {
		return fmt.Errorf("failed to mark absence converted: %w", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		err = repositories.ErrAbsenceNotFound
		return err
	}

	return nil
}

// CreateConversion stores a conversion request. A partial unique index on
// (absence_id) WHERE status = 'pending' enforces the single-pending
// invariant; a violation surfaces as ErrConversionPending.
func (r *AbsenceRepository) CreateConversion(ctx context.Context, conv *entities.ConversionRequest) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("conversion", "create", time.Since(start), 1, err)
	}()

	query := `
		INSERT INTO conversion_requests (id, absence_id, user_id, leave_type, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = r.db.ExecContext(ctx, query,
		conv.ID, conv.AbsenceID, conv.UserID, string(conv.LeaveType), string(conv.Status), conv.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			err = repositories.ErrConversionPending
			return err
		}
		return fmt.Errorf("failed to create conversion request: %w", err)
	}

	return nil
}

// GetConversion retrieves a conversion request by ID
func (r *AbsenceRepository) GetConversion(ctx context.Context, id string) (*entities.ConversionRequest, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("conversion", "get_by_id", time.Since(start), rowCount, err)
	}()

	var row conversionRow
	query := `SELECT ` + conversionColumns + ` FROM conversion_requests WHERE id = $1`

	err = r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			err = repositories.ErrConversionNotFound
			return nil, err
		}
		return nil, fmt.Errorf("failed to get conversion request: %w", err)
	}

	rowCount = 1
	return row.toEntity(), nil
}

// ListPendingConversions retrieves all pending conversion requests
func (r *AbsenceRepository) ListPendingConversions(ctx context.Context) ([]*entities.ConversionRequest, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("conversion", "list_pending", time.Since(start), rowCount, err)
	}()

	var rows []conversionRow
	query := `SELECT ` + conversionColumns + ` FROM conversion_requests WHERE status = 'pending' ORDER BY created_at`

	err = r.db.SelectContext(ctx, &rows, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending conversions: %w", err)
	}

	rowCount = int64(len(rows))
	convs := make([]*entities.ConversionRequest, len(rows))
	for i := range rows {
		convs[i] = rows[i].toEntity()
	}

	return convs, nil
}

// UpdateConversionStatus records a decision on a pending conversion request
func (r *AbsenceRepository) UpdateConversionStatus(ctx context.Context, id string, status entities.ConversionStatus, decidedBy string, decidedAt time.Time) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("conversion", "update_status", time.Since(start), rowsAffected, err)
	}()

	query := `
		UPDATE conversion_requests SET
			status = $1,
			decided_by = $2,
			decided_at = $3
		WHERE id = $4 AND status = 'pending'`

	result, err := r.db.ExecContext(ctx, query, string(status), decidedBy, decidedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update conversion status: %w", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		err = repositories.ErrConversionNotFound
		return err
	}

	return nil
}

// ApproveConversion approves a pending conversion in one transaction: flip
// the conversion status, store the resulting approved leave request, mark
// the absence converted, and debit the covering balance. The guarded status
// flip runs first; a racing decider sees zero rows and nothing else happens.
func (r *AbsenceRepository) ApproveConversion(ctx context.Context, conversionID, absenceID, decidedBy string, decidedAt time.Time, leave *entities.LeaveRequest) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("conversion", "approve", time.Since(start), rowsAffected, err)
	}()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, execErr := tx.ExecContext(ctx, `
		UPDATE conversion_requests SET
			status = 'approved',
			decided_by = $1,
			decided_at = $2
		WHERE id = $3 AND status = 'pending'`,
		decidedBy, decidedAt, conversionID)
	if execErr != nil {
		err = execErr
		return fmt.Errorf("failed to approve conversion: %w", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		err = repositories.ErrConversionNotFound
		return err
	}

	var reason, leaveDecidedBy sql.NullString
	var leaveDecidedAt sql.NullTime
	if leave.Reason != "" {
		reason = sql.NullString{String: leave.Reason, Valid: true}
	}
	if leave.DecidedBy != nil {
		leaveDecidedBy = sql.NullString{String: *leave.DecidedBy, Valid: true}
	}
	if leave.DecidedAt != nil {
		leaveDecidedAt = sql.NullTime{Time: *leave.DecidedAt, Valid: true}
	}

	_, execErr = tx.ExecContext(ctx, `
		INSERT INTO leave_requests (
			id, user_id, leave_type, start_date, end_date, business_days,
			reason, status, decided_by, decision_comment, decided_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		leave.ID, leave.UserID, string(leave.Type), leave.StartDate, leave.EndDate, leave.BusinessDays,
		reason, string(leave.Status), leaveDecidedBy, sql.NullString{}, leaveDecidedAt, leave.CreatedAt, leave.UpdatedAt)
	if execErr != nil {
		err = execErr
		return fmt.Errorf("failed to create converted leave request: %w", err)
	}

	converted, execErr := tx.ExecContext(ctx,
		`UPDATE absences SET converted = true WHERE id = $1 AND converted = false`, absenceID)
	if execErr != nil {
		err = execErr
		return fmt.Errorf("failed to mark absence converted: %w", err)
	}
	markedRows, execErr := converted.RowsAffected()
	if execErr != nil {
		err = execErr
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if markedRows == 0 {
		err = repositories.ErrAbsenceNotFound
		return err
	}

	if leave.BusinessDays > 0 {
		debit, execErr := tx.ExecContext(ctx, `
			UPDATE balances SET used_days = used_days + $1
			WHERE user_id = $2 AND leave_type = $3 AND year = $4`,
			leave.BusinessDays, leave.UserID, string(leave.Type), leave.StartDate.Year())
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
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit conversion approval: %w", err)
	}

	return nil
}
