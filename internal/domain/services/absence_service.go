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

// AbsenceService handles recorded absences and their conversion into leave
type AbsenceService struct {
	absenceRepo  repositories.AbsenceRepository
	balanceRepo  repositories.BalanceRepository
	entitlements map[entities.LeaveType]int
	log          *slog.Logger
}

// NewAbsenceService creates a new absence service
func NewAbsenceService(absenceRepo repositories.AbsenceRepository, balanceRepo repositories.BalanceRepository, entitlements map[entities.LeaveType]int) *AbsenceService {
	return &AbsenceService{
		absenceRepo:  absenceRepo,
		balanceRepo:  balanceRepo,
		entitlements: entitlements,
		log:          slog.Default().With(slog.String("component", "absence_service")),
	}
}

// Record stores an unplanned absence for the user
func (s *AbsenceService) Record(ctx context.Context, userID string, start, end time.Time, note string) (*entities.Absence, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date precedes start date", ErrInvalidInput)
	}

	absence := &entities.Absence{
		ID:        idgen.GenerateID(),
		UserID:    userID,
		StartDate: start,
		EndDate:   end,
		Note:      note,
		CreatedAt: time.Now(),
	}

	if err := s.absenceRepo.CreateAbsence(ctx, absence); err != nil {
		return nil, fmt.Errorf("failed to record absence: %w", err)
	}

	s.log.Info("absence recorded",
		slog.String("absence_id", absence.ID),
		slog.String("user_id", userID))

	return absence, nil
}

// List retrieves the user's recorded absences, newest first
func (s *AbsenceService) List(ctx context.Context, userID string) ([]*entities.Absence, error) {
	absences, err := s.absenceRepo.ListAbsencesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list absences: %w", err)
	}
	return absences, nil
}

// RequestConversion asks for an absence to be converted into leave of the
// given type. The absence must belong to the user, must not already be
// converted, and may carry at most one pending conversion request.
func (s *AbsenceService) RequestConversion(ctx context.Context, userID, absenceID string, leaveType entities.LeaveType) (*entities.ConversionRequest, error) {
	if !entities.ValidLeaveType(leaveType) {
		return nil, fmt.Errorf("%w: unknown leave type %q", ErrInvalidInput, leaveType)
	}

	absence, err := s.absenceRepo.GetAbsence(ctx, absenceID)
	if err != nil {
		return nil, err
	}
	if absence.UserID != userID {
		return nil, ErrForbidden
	}
	if absence.Converted {
		return nil, ErrAlreadyConverted
	}

	conv := &entities.ConversionRequest{
		ID:        idgen.GenerateID(),
		AbsenceID: absenceID,
		UserID:    userID,
		LeaveType: leaveType,
		Status:    entities.ConversionPending,
		CreatedAt: time.Now(),
	}

	if err := s.absenceRepo.CreateConversion(ctx, conv); err != nil {
		return nil, err
	}

	s.log.Info("conversion requested",
		slog.String("conversion_id", conv.ID),
		slog.String("absence_id", absenceID),
		slog.String("type", string(leaveType)))

	return conv, nil
}

// ListPending retrieves all pending conversion requests; deciders only
func (s *AbsenceService) ListPending(ctx context.Context, actor *entities.User) ([]*entities.ConversionRequest, error) {
	if !actor.CanDecide() {
		return nil, ErrForbidden
	}

	convs, err := s.absenceRepo.ListPendingConversions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending conversions: %w", err)
	}
	return convs, nil
}

// Decide approves or rejects a pending conversion request. Approval turns
// the absence into an approved leave request, marks the absence converted,
// and debits the balance for the covered business days.
func (s *AbsenceService) Decide(ctx context.Context, actor *entities.User, conversionID string, approve bool) (*entities.ConversionRequest, error) {
	if !actor.CanDecide() {
		return nil, ErrForbidden
	}

	conv, err := s.absenceRepo.GetConversion(ctx, conversionID)
	if err != nil {
		return nil, err
	}
	if conv.UserID == actor.ID {
		return nil, ErrSelfDecision
	}
	if conv.Status != entities.ConversionPending {
		return nil, ErrNotPending
	}

	status := entities.ConversionRejected
	now := time.Now()

	if approve {
		status = entities.ConversionApproved

		absence, err := s.absenceRepo.GetAbsence(ctx, conv.AbsenceID)
		if err != nil {
			return nil, err
		}
		if absence.Converted {
			return nil, ErrAlreadyConverted
		}

		days := timeutil.CountBusinessDays(absence.StartDate, absence.EndDate)
		balance, err := s.balanceRepo.GetOrCreate(ctx, conv.UserID, conv.LeaveType, absence.StartDate.Year(), s.entitlements[conv.LeaveType])
		if err != nil {
			return nil, fmt.Errorf("failed to load balance: %w", err)
		}
		if !balance.CanCover(days) {
			return nil, fmt.Errorf("%w: %d days requested, %d remaining",
				ErrInsufficientBalance, days, balance.RemainingDays())
		}

		req := &entities.LeaveRequest{
			ID:           idgen.GenerateID(),
			UserID:       conv.UserID,
			Type:         conv.LeaveType,
			StartDate:    absence.StartDate,
			EndDate:      absence.EndDate,
			BusinessDays: days,
			Reason:       absence.Note,
			Status:       entities.LeaveApproved,
			DecidedBy:    &actor.ID,
			DecidedAt:    &now,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		// Status flip, leave request, converted flag, and debit happen in
		// one transaction; a racing decider loses at the pending guard and
		// causes no side effects
		if err := s.absenceRepo.ApproveConversion(ctx, conversionID, conv.AbsenceID, actor.ID, now, req); err != nil {
			if errors.Is(err, repositories.ErrConversionNotFound) {
				return nil, ErrNotPending
			}
			return nil, fmt.Errorf("failed to approve conversion: %w", err)
		}

		metrics.LeaveRequestsTotal.WithLabelValues(string(conv.LeaveType)).Inc()
	} else {
		if err := s.absenceRepo.UpdateConversionStatus(ctx, conversionID, status, actor.ID, now); err != nil {
			if errors.Is(err, repositories.ErrConversionNotFound) {
				return nil, ErrNotPending
			}
			return nil, fmt.Errorf("failed to record conversion decision: %w", err)
		}
	}

	s.log.Info("conversion decided",
		slog.String("conversion_id", conversionID),
		slog.String("decided_by", actor.ID),
		slog.String("status", string(status)))

	return s.absenceRepo.GetConversion(ctx, conversionID)
}
