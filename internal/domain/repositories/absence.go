package repositories

import (
	"context"
	"time"

	"github.com/absentia/absentia/internal/domain/entities"
)

// AbsenceRepository defines the interface for absence and conversion data access
type AbsenceRepository interface {
	// CreateAbsence records a new absence
	CreateAbsence(ctx context.Context, absence *entities.Absence) error

	// GetAbsence retrieves an absence by ID
	GetAbsence(ctx context.Context, id string) (*entities.Absence, error)

	// ListAbsencesByUser retrieves a user's absences, newest first
	ListAbsencesByUser(ctx context.Context, userID string) ([]*entities.Absence, error)

	// MarkConverted flags an absence as converted into leave
	MarkConverted(ctx context.Context, absenceID string) error

	// CreateConversion stores a conversion request. Returns ErrConversionPending
	// when the absence already has a pending request (single-pending invariant).
	CreateConversion(ctx context.Context, conv *entities.ConversionRequest) error

	// GetConversion retrieves a conversion request by ID
	GetConversion(ctx context.Context, id string) (*entities.ConversionRequest, error)

	// ListPendingConversions retrieves all pending conversion requests
	ListPendingConversions(ctx context.Context) ([]*entities.ConversionRequest, error)

	// UpdateConversionStatus records a decision on a pending conversion
	// request; losing a decision race surfaces as ErrConversionNotFound
	UpdateConversionStatus(ctx context.Context, id string, status entities.ConversionStatus, decidedBy string, decidedAt time.Time) error

	// ApproveConversion approves a pending conversion in one transaction:
	// it flips the conversion status, stores the resulting approved leave
	// request, marks the absence converted, and debits the covering balance.
	// The status flip runs first and only applies while the conversion is
	// still pending, so a racing decider gets ErrConversionNotFound with no
	// side effects.
	ApproveConversion(ctx context.Context, conversionID, absenceID, decidedBy string, decidedAt time.Time, leave *entities.LeaveRequest) error
}
