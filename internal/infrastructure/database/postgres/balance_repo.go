package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/absentia/absentia/internal/domain/entities"
	"github.com/absentia/absentia/internal/domain/repositories"
	"github.com/absentia/absentia/internal/pkg/metrics"
)

// BalanceRepository implements the BalanceRepository interface for PostgreSQL
type BalanceRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewBalanceRepository creates a new PostgreSQL balance repository
func NewBalanceRepository(db *sqlx.DB) repositories.BalanceRepository {
	return &BalanceRepository{
		db:  db,
		log: slog.Default().With(slog.String("repo", "balance")),
	}
}

// balanceRow represents a balance as stored in the database
type balanceRow struct {
	UserID       string `db:"user_id"`
	LeaveType    string `db:"leave_type"`
	Year         int    `db:"year"`
	EntitledDays int    `db:"entitled_days"`
	UsedDays     int    `db:"used_days"`
}

func (r *balanceRow) toEntity() *entities.Balance {
	return &entities.Balance{
		UserID:       r.UserID,
		LeaveType:    entities.LeaveType(r.LeaveType),
		Year:         r.Year,
		EntitledDays: r.EntitledDays,
		UsedDays:     r.UsedDays,
	}
}

// GetOrCreate returns the balance row for (user, type, year), creating it
// with the given entitlement when absent. The conflict clause makes the lazy
// creation race-free; an existing row is never overwritten.
func (r *BalanceRepository) GetOrCreate(ctx context.Context, userID string, leaveType entities.LeaveType, year int, entitledDays int) (*entities.Balance, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("balance", "get_or_create", time.Since(start), 1, err)
	}()

	query := `
		INSERT INTO balances (user_id, leave_type, year, entitled_days, used_days)
		VALUES ($1, $2, $3, $4, 0)
		ON CONFLICT (user_id, leave_type, year) DO UPDATE SET
			user_id = EXCLUDED.user_id
		RETURNING user_id, leave_type, year, entitled_days, used_days`

	var row balanceRow
	err = r.db.GetContext(ctx, &row, query, userID, string(leaveType), year, entitledDays)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create balance: %w", err)
	}

	return row.toEntity(), nil
}

// AddUsedDays debits (positive delta) or credits (negative delta) used days
func (r *BalanceRepository) AddUsedDays(ctx context.Context, userID string, leaveType entities.LeaveType, year int, delta int) error {
	start := time.Now()
	var err error
	var rowsAffected int64
	defer func() {
		metrics.RecordDBOperation("balance", "add_used_days", time.Since(start), rowsAffected, err)
	}()

	r.log.Debug("adjusting balance",
		slog.String("user_id", userID),
		slog.String("leave_type", string(leaveType)),
		slog.Int("year", year),
		slog.Int("delta", delta))

	query := `
		UPDATE balances SET used_days = used_days + $1
		WHERE user_id = $2 AND leave_type = $3 AND year = $4`

	result, err := r.db.ExecContext(ctx, query, delta, userID, string(leaveType), year)
	if err != nil {
		return fmt.Errorf("failed to adjust balance: %w", err)
	}

	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		err = repositories.ErrBalanceNotFound
		return err
	}

	return nil
}

// ListByUser retrieves all balance rows for a user and year
func (r *BalanceRepository) ListByUser(ctx context.Context, userID string, year int) ([]*entities.Balance, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("balance", "list_by_user", time.Since(start), rowCount, err)
	}()

	var rows []balanceRow
	query := `
		SELECT user_id, leave_type, year, entitled_days, used_days
		FROM balances
		WHERE user_id = $1 AND year = $2
		ORDER BY leave_type`

	err = r.db.SelectContext(ctx, &rows, query, userID, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}

	rowCount = int64(len(rows))
	balances := make([]*entities.Balance, len(rows))
	for i := range rows {
		balances[i] = rows[i].toEntity()
	}

	return balances, nil
}
