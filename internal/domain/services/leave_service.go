package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/absentia/absentia/internal/domain/entities"
	"github.com/absentia/absentia/internal/domain/repositories"
	"github.com/absentia/absentia/internal/pkg/idgen"
	"github.com/absentia/absentia/internal/pkg/metrics"
	"github.com/absentia/absentia/internal/pkg/timeutil"
)

// LeaveService handles business logic for leave requests and balances
type LeaveService struct {
	leaveRepo    repositories.LeaveRequestRepository
	balanceRepo  repositories.BalanceRepository
	userRepo     repositories.UserRepository
	entitlements map[entities.LeaveType]int
	log          *slog.Logger
}

// NewLeaveService creates a new leave service. Entitlements are the default
// yearly business-day allowances per leave type, used when a balance row is
// created lazily.
func NewLeaveService(leaveRepo repositories.LeaveRequestRepository, balanceRepo repositories.BalanceRepository, userRepo repositories.UserRepository, entitlements map[entities.LeaveType]int) *LeaveService {
	return &LeaveService{
		leaveRepo:    leaveRepo,
		balanceRepo:  balanceRepo,
		userRepo:     userRepo,
		entitlements: entitlements,
		log:          slog.Default().With(slog.String("component", "leave_service")),
	}
}

// Submit creates a new pending leave request for the user
func (s *LeaveService) Submit(ctx context.Context, userID string, leaveType entities.LeaveType, start, end time.Time, reason string) (*entities.LeaveRequest, error) {
	if !entities.ValidLeaveType(leaveType) {
		return nil, fmt.Errorf("%w: unknown leave type %q", ErrInvalidInput, leaveType)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date precedes start date", ErrInvalidInput)
	}

	days := timeutil.CountBusinessDays(start, end)
	if days == 0 {
		return nil, fmt.Errorf("%w: range contains no business days", ErrInvalidInput)
	}

	overlapping, err := s.leaveRepo.CountOverlapping(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to check overlapping requests: %w", err)
	}
	if overlapping > 0 {
		return nil, ErrOverlappingRequest
	}

	now := time.Now()
	req := &entities.LeaveRequest{
		ID:           idgen.GenerateID(),
		UserID:       userID,
		Type:         leaveType,
		StartDate:    start,
		EndDate:      end,
		BusinessDays: days,
		Reason:       reason,
		Status:       entities.LeavePending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.leaveRepo.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create leave request: %w", err)
	}

	metrics.LeaveRequestsTotal.WithLabelValues(string(leaveType)).Inc()
	s.log.Info("leave request submitted",
		slog.String("request_id", req.ID),
		slog.String("user_id", userID),
		slog.String("type", string(leaveType)),
		slog.Int("business_days", days))

	return req, nil
}

// Get retrieves a leave request, enforcing visibility: owners see their own,
// deciders see their reports' requests, HR sees everything
func (s *LeaveService) Get(ctx context.Context, actor *entities.User, id string) (*entities.LeaveRequest, error) {
	req, err := s.leaveRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, actor, req); err != nil {
		return nil, err
	}
	return req, nil
}

// ListOwn retrieves the acting user's requests, newest first
func (s *LeaveService) ListOwn(ctx context.Context, userID string) ([]*entities.LeaveRequest, error) {
	reqs, err := s.leaveRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list leave requests: %w", err)
	}
	return reqs, nil
}

// ListTeam retrieves requests of a manager's direct reports
func (s *LeaveService) ListTeam(ctx context.Context, manager *entities.User) ([]*entities.LeaveRequest, error) {
	if !manager.CanDecide() {
		return nil, ErrForbidden
	}

	reports, err := s.userRepo.ListByManager(ctx, manager.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	if len(reports) == 0 {
		return []*entities.LeaveRequest{}, nil
	}

	ids := make([]string, len(reports))
	for i, u := range reports {
		ids[i] = u.ID
	}

	reqs, err := s.leaveRepo.ListByUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list team requests: %w", err)
	}
	return reqs, nil
}

// ListByStatus retrieves all requests in a status; HR only
func (s *LeaveService) ListByStatus(ctx context.Context, actor *entities.User, status entities.LeaveStatus) ([]*entities.LeaveRequest, error) {
	if !actor.IsHR() {
		return nil, ErrForbidden
	}

	reqs, err := s.leaveRepo.ListByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests by status: %w", err)
	}
	return reqs, nil
}

// Decide approves or rejects a pending request. Only managers and HR may
// decide, never on their own request. Approval debits the balance for the
// request's type and start year; rejection leaves the balance untouched.
func (s *LeaveService) Decide(ctx context.Context, actor *entities.User, requestID string, approve bool, comment string) (*entities.LeaveRequest, error) {
	if !actor.CanDecide() {
		return nil, ErrForbidden
	}

	req, err := s.leaveRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.UserID == actor.ID {
		return nil, ErrSelfDecision
	}
	if !req.IsPending() {
		return nil, ErrNotPending
	}

	status := entities.LeaveRejected
	now := time.Now()

	if approve {
		status = entities.LeaveApproved

		balance, err := s.balanceForRequest(ctx, req)
		if err != nil {
			return nil, err
		}
		if !balance.CanCover(req.BusinessDays) {
			return nil, fmt.Errorf("%w: %d days requested, %d remaining",
				ErrInsufficientBalance, req.BusinessDays, balance.RemainingDays())
		}

		// Status flip and debit happen in one transaction; a racing decider
		// loses at the pending guard and causes no side effects
		if err := s.leaveRepo.ApproveAndDebit(ctx, req, actor.ID, comment, now); err != nil {
			if errors.Is(err, repositories.ErrLeaveRequestNotFound) {
				return nil, ErrNotPending
			}
			return nil, fmt.Errorf("failed to approve request: %w", err)
		}
	} else {
		if err := s.leaveRepo.UpdateStatus(ctx, requestID, status, actor.ID, comment, now); err != nil {
			if errors.Is(err, repositories.ErrLeaveRequestNotFound) {
				return nil, ErrNotPending
			}
			return nil, fmt.Errorf("failed to record decision: %w", err)
		}
	}

	metrics.LeaveDecisions.WithLabelValues(string(status)).Inc()
	s.log.Info("leave request decided",
		slog.String("request_id", requestID),
		slog.String("decided_by", actor.ID),
		slog.String("status", string(status)))

	return s.leaveRepo.GetByID(ctx, requestID)
}

// Cancel withdraws the user's own pending request. Cancelled requests never
// touch the balance.
func (s *LeaveService) Cancel(ctx context.Context, userID, requestID string) (*entities.LeaveRequest, error) {
	req, err := s.leaveRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.UserID != userID {
		return nil, ErrForbidden
	}
	if !req.IsPending() {
		return nil, ErrNotPending
	}

	if err := s.leaveRepo.UpdateStatus(ctx, requestID, entities.LeaveCancelled, userID, "", time.Now()); err != nil {
		return nil, fmt.Errorf("failed to cancel request: %w", err)
	}

	metrics.LeaveDecisions.WithLabelValues(string(entities.LeaveCancelled)).Inc()
	return s.leaveRepo.GetByID(ctx, requestID)
}

// Balances returns the user's balance rows for a year, materializing missing
// rows with the configured default entitlements
func (s *LeaveService) Balances(ctx context.Context, userID string, year int) ([]*entities.Balance, error) {
	for leaveType, entitled := range s.entitlements {
		if _, err := s.balanceRepo.GetOrCreate(ctx, userID, leaveType, year, entitled); err != nil {
			return nil, fmt.Errorf("failed to materialize balance: %w", err)
		}
	}

	balances, err := s.balanceRepo.ListByUser(ctx, userID, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	return balances, nil
}

// YearlyReport aggregates per-user leave totals by type and status; HR only
func (s *LeaveService) YearlyReport(ctx context.Context, actor *entities.User, year int) ([]*repositories.LeaveAggregate, error) {
	if !actor.IsHR() {
		return nil, ErrForbidden
	}

	rows, err := s.leaveRepo.AggregateByYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate leave requests: %w", err)
	}
	return rows, nil
}

// balanceForRequest loads the balance row covering the request, creating it
// with the default entitlement when absent
func (s *LeaveService) balanceForRequest(ctx context.Context, req *entities.LeaveRequest) (*entities.Balance, error) {
	entitled := s.entitlements[req.Type]
	balance, err := s.balanceRepo.GetOrCreate(ctx, req.UserID, req.Type, req.StartDate.Year(), entitled)
	if err != nil {
		return nil, fmt.Errorf("failed to load balance: %w", err)
	}
	return balance, nil
}

// canView enforces request visibility for Get
func (s *LeaveService) canView(ctx context.Context, actor *entities.User, req *entities.LeaveRequest) error {
	if req.UserID == actor.ID || actor.IsHR() {
		return nil
	}
	if actor.CanDecide() {
		owner, err := s.userRepo.GetByID(ctx, req.UserID)
		if err != nil {
			return err
		}
		if owner.ManagerID != nil && *owner.ManagerID == actor.ID {
			return nil
		}
	}
	return ErrForbidden
}
