package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/absentia/absentia/internal/domain/entities"
	"github.com/absentia/absentia/internal/domain/repositories"
)

// fakeAbsenceRepo is an in-memory AbsenceRepository enforcing the
// single-pending invariant the way the database's partial unique index does.
// Status writes carry the same pending guard as the database UPDATE; with
// staleReads set, reads return the pre-decision snapshot a racing decider
// would have seen.
type fakeAbsenceRepo struct {
	absences    map[string]*entities.Absence
	conversions map[string]*entities.ConversionRequest
	leave       *fakeLeaveRepo
	balances    *fakeBalanceRepo
	staleReads  bool
}

func newFakeAbsenceRepo(leave *fakeLeaveRepo, balances *fakeBalanceRepo) *fakeAbsenceRepo {
	return &fakeAbsenceRepo{
		absences:    make(map[string]*entities.Absence),
		conversions: make(map[string]*entities.ConversionRequest),
		leave:       leave,
		balances:    balances,
	}
}

func (f *fakeAbsenceRepo) CreateAbsence(ctx context.Context, absence *entities.Absence) error {
	cp := *absence
	f.absences[absence.ID] = &cp
	return nil
}

func (f *fakeAbsenceRepo) GetAbsence(ctx context.Context, id string) (*entities.Absence, error) {
	a, ok := f.absences[id]
	if !ok {
		return nil, repositories.ErrAbsenceNotFound
	}
	cp := *a
	if f.staleReads {
		cp.Converted = false
	}
	return &cp, nil
}

func (f *fakeAbsenceRepo) ListAbsencesByUser(ctx context.Context, userID string) ([]*entities.Absence, error) {
	var out []*entities.Absence
	for _, a := range f.absences {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeAbsenceRepo) MarkConverted(ctx context.Context, absenceID string) error {
	a, ok := f.absences[absenceID]
	if !ok {
		return repositories.ErrAbsenceNotFound
	}
	a.Converted = true
	return nil
}

func (f *fakeAbsenceRepo) CreateConversion(ctx context.Context, conv *entities.ConversionRequest) error {
	for _, existing := range f.conversions {
		if existing.AbsenceID == conv.AbsenceID && existing.Status == entities.ConversionPending {
			return repositories.ErrConversionPending
		}
	}
	cp := *conv
	f.conversions[conv.ID] = &cp
	return nil
}

func (f *fakeAbsenceRepo) GetConversion(ctx context.Context, id string) (*entities.ConversionRequest, error) {
	c, ok := f.conversions[id]
	if !ok {
		return nil, repositories.ErrConversionNotFound
	}
	cp := *c
	if f.staleReads {
		cp.Status = entities.ConversionPending
		cp.DecidedBy = nil
		cp.DecidedAt = nil
	}
	return &cp, nil
}

func (f *fakeAbsenceRepo) ListPendingConversions(ctx context.Context) ([]*entities.ConversionRequest, error) {
	var out []*entities.ConversionRequest
	for _, c := range f.conversions {
		if c.Status == entities.ConversionPending {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeAbsenceRepo) UpdateConversionStatus(ctx context.Context, id string, status entities.ConversionStatus, decidedBy string, decidedAt time.Time) error {
	c, ok := f.conversions[id]
	if !ok || c.Status != entities.ConversionPending {
		return repositories.ErrConversionNotFound
	}
	c.Status = status
	c.DecidedBy = &decidedBy
	c.DecidedAt = &decidedAt
	return nil
}

func (f *fakeAbsenceRepo) ApproveConversion(ctx context.Context, conversionID, absenceID, decidedBy string, decidedAt time.Time, leave *entities.LeaveRequest) error {
	c, ok := f.conversions[conversionID]
	if !ok || c.Status != entities.ConversionPending {
		return repositories.ErrConversionNotFound
	}
	c.Status = entities.ConversionApproved
	c.DecidedBy = &decidedBy
	c.DecidedAt = &decidedAt
	if err := f.leave.Create(ctx, leave); err != nil {
		return err
	}
	if err := f.MarkConverted(ctx, absenceID); err != nil {
		return err
	}
	if leave.BusinessDays > 0 {
		return f.balances.AddUsedDays(ctx, leave.UserID, leave.Type, leave.StartDate.Year(), leave.BusinessDays)
	}
	return nil
}

func newTestAbsenceService() (*AbsenceService, *fakeLeaveRepo, *fakeBalanceRepo) {
	leaveRepo := newFakeLeaveRepo()
	balanceRepo := newFakeBalanceRepo()
	leaveRepo.balances = balanceRepo
	svc := NewAbsenceService(newFakeAbsenceRepo(leaveRepo, balanceRepo), balanceRepo, testEntitlements)
	return svc, leaveRepo, balanceRepo
}

func TestAbsenceService_RecordAndList(t *testing.T) {
	svc, _, _ := newTestAbsenceService()

	a, err := svc.Record(context.Background(), "emp-1", date("2026-06-02"), date("2026-06-03"), "flu")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if a.Converted {
		t.Error("new absence must not be marked converted")
	}

	if _, err := svc.Record(context.Background(), "emp-1", date("2026-06-05"), date("2026-06-04"), ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for reversed range, got %v", err)
	}

	absences, err := svc.List(context.Background(), "emp-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(absences) != 1 {
		t.Errorf("expected 1 absence, got %d", len(absences))
	}
}

func TestAbsenceService_SinglePendingConversion(t *testing.T) {
	svc, _, _ := newTestAbsenceService()

	a, _ := svc.Record(context.Background(), "emp-1", date("2026-06-02"), date("2026-06-03"), "flu")

	if _, err := svc.RequestConversion(context.Background(), "emp-1", a.ID, entities.LeaveSick); err != nil {
		t.Fatalf("first conversion request: %v", err)
	}

	_, err := svc.RequestConversion(context.Background(), "emp-1", a.ID, entities.LeaveSick)
	if !errors.Is(err, repositories.ErrConversionPending) {
		t.Fatalf("expected ErrConversionPending, got %v", err)
	}
}

func TestAbsenceService_ConversionOwnership(t *testing.T) {
	svc, _, _ := newTestAbsenceService()

	a, _ := svc.Record(context.Background(), "emp-1", date("2026-06-02"), date("2026-06-03"), "")

	if _, err := svc.RequestConversion(context.Background(), "emp-2", a.ID, entities.LeaveSick); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for someone else's absence, got %v", err)
	}
	if _, err := svc.RequestConversion(context.Background(), "emp-1", a.ID, "sabbatical"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown type, got %v", err)
	}
}

func TestAbsenceService_ApproveConversion(t *testing.T) {
	manager := &entities.User{ID: "mgr-1", Role: entities.RoleManager}
	svc, leaveRepo, balances := newTestAbsenceService()

	// Tue through Wed, 2 business days
	a, _ := svc.Record(context.Background(), "emp-1", date("2026-06-02"), date("2026-06-03"), "flu")
	conv, _ := svc.RequestConversion(context.Background(), "emp-1", a.ID, entities.LeaveSick)

	decided, err := svc.Decide(context.Background(), manager, conv.ID, true)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if decided.Status != entities.ConversionApproved {
		t.Errorf("expected approved, got %s", decided.Status)
	}

	// The absence becomes an approved leave request covering its range
	reqs, _ := leaveRepo.ListByUser(context.Background(), "emp-1")
	if len(reqs) != 1 {
		t.Fatalf("expected 1 leave request after conversion, got %d", len(reqs))
	}
	if reqs[0].Status != entities.LeaveApproved {
		t.Errorf("expected approved leave request, got %s", reqs[0].Status)
	}
	if reqs[0].BusinessDays != 2 {
		t.Errorf("expected 2 business days, got %d", reqs[0].BusinessDays)
	}

	// The absence is marked converted and the balance debited
	got, _ := svc.absenceRepo.GetAbsence(context.Background(), a.ID)
	if !got.Converted {
		t.Error("expected absence marked converted")
	}
	b, _ := balances.GetOrCreate(context.Background(), "emp-1", entities.LeaveSick, 2026, 10)
	if b.UsedDays != 2 {
		t.Errorf("expected 2 used sick days, got %d", b.UsedDays)
	}

	// A converted absence cannot be converted again
	if _, err := svc.RequestConversion(context.Background(), "emp-1", a.ID, entities.LeaveSick); !errors.Is(err, ErrAlreadyConverted) {
		t.Errorf("expected ErrAlreadyConverted, got %v", err)
	}
}

func TestAbsenceService_RacingDecidersApproveOnce(t *testing.T) {
	first := &entities.User{ID: "mgr-1", Role: entities.RoleManager}
	second := &entities.User{ID: "mgr-2", Role: entities.RoleManager}
	svc, leaveRepo, balances := newTestAbsenceService()
	absences := svc.absenceRepo.(*fakeAbsenceRepo)

	// Wed through Fri, 3 business days
	a, _ := svc.Record(context.Background(), "emp-1", date("2026-06-03"), date("2026-06-05"), "flu")
	conv, _ := svc.RequestConversion(context.Background(), "emp-1", a.ID, entities.LeaveSick)

	if _, err := svc.Decide(context.Background(), first, conv.ID, true); err != nil {
		t.Fatalf("first decision: %v", err)
	}

	// The second decider read the conversion while it was still pending;
	// the guarded status flip must stop every side effect
	absences.staleReads = true
	_, err := svc.Decide(context.Background(), second, conv.ID, true)
	absences.staleReads = false
	if !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending for the losing decider, got %v", err)
	}

	reqs, _ := leaveRepo.ListByUser(context.Background(), "emp-1")
	if len(reqs) != 1 {
		t.Errorf("expected exactly 1 leave request after racing approvals, got %d", len(reqs))
	}
	b, _ := balances.GetOrCreate(context.Background(), "emp-1", entities.LeaveSick, 2026, 10)
	if b.UsedDays != 3 {
		t.Errorf("expected a single 3 day debit, got %d used days", b.UsedDays)
	}
}

func TestAbsenceService_RejectConversion(t *testing.T) {
	manager := &entities.User{ID: "mgr-1", Role: entities.RoleManager}
	svc, leaveRepo, balances := newTestAbsenceService()

	a, _ := svc.Record(context.Background(), "emp-1", date("2026-06-02"), date("2026-06-03"), "")
	conv, _ := svc.RequestConversion(context.Background(), "emp-1", a.ID, entities.LeaveSick)

	decided, err := svc.Decide(context.Background(), manager, conv.ID, false)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if decided.Status != entities.ConversionRejected {
		t.Errorf("expected rejected, got %s", decided.Status)
	}

	reqs, _ := leaveRepo.ListByUser(context.Background(), "emp-1")
	if len(reqs) != 0 {
		t.Error("rejection must not create a leave request")
	}
	b, _ := balances.GetOrCreate(context.Background(), "emp-1", entities.LeaveSick, 2026, 10)
	if b.UsedDays != 0 {
		t.Error("rejection must not touch the balance")
	}

	// After rejection a new conversion request is allowed again
	if _, err := svc.RequestConversion(context.Background(), "emp-1", a.ID, entities.LeavePersonal); err != nil {
		t.Errorf("expected new conversion request after rejection, got %v", err)
	}
}

func TestAbsenceService_DecideAuthorization(t *testing.T) {
	employee := &entities.User{ID: "emp-2", Role: entities.RoleEmployee}
	manager := &entities.User{ID: "mgr-1", Role: entities.RoleManager}
	svc, _, _ := newTestAbsenceService()

	a, _ := svc.Record(context.Background(), "emp-1", date("2026-06-02"), date("2026-06-03"), "")
	conv, _ := svc.RequestConversion(context.Background(), "emp-1", a.ID, entities.LeaveSick)

	if _, err := svc.Decide(context.Background(), employee, conv.ID, true); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for employee decider, got %v", err)
	}

	// The absence owner cannot decide their own conversion even as a manager
	owner := &entities.User{ID: "emp-1", Role: entities.RoleManager}
	if _, err := svc.Decide(context.Background(), owner, conv.ID, true); !errors.Is(err, ErrSelfDecision) {
		t.Errorf("expected ErrSelfDecision, got %v", err)
	}

	if _, err := svc.Decide(context.Background(), manager, conv.ID, false); err != nil {
		t.Fatalf("decide: %v", err)
	}
	if _, err := svc.Decide(context.Background(), manager, conv.ID, true); !errors.Is(err, ErrNotPending) {
		t.Errorf("expected ErrNotPending on second decision, got %v", err)
	}
}

func TestAbsenceService_ListPending(t *testing.T) {
	manager := &entities.User{ID: "mgr-1", Role: entities.RoleManager}
	employee := &entities.User{ID: "emp-1", Role: entities.RoleEmployee}
	svc, _, _ := newTestAbsenceService()

	a, _ := svc.Record(context.Background(), "emp-1", date("2026-06-02"), date("2026-06-03"), "")
	svc.RequestConversion(context.Background(), "emp-1", a.ID, entities.LeaveSick)

	pending, err := svc.ListPending(context.Background(), manager)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("expected 1 pending conversion, got %d", len(pending))
	}

	if _, err := svc.ListPending(context.Background(), employee); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for employee, got %v", err)
	}
}
