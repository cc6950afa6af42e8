package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/absentia/absentia/internal/auth"
	"github.com/absentia/absentia/internal/domain/entities"
)

func TestUserService_SetRoleInvalidatesCache(t *testing.T) {
	hr := &entities.User{ID: "hr-1", Role: entities.RoleHR}
	target := &entities.User{ID: "emp-1", ExternalSubject: "sub-emp-1", Role: entities.RoleEmployee}

	cache := auth.NewIdentityCache(time.Minute, 10)
	cache.Set(target)

	svc := NewUserService(newFakeUserRepo(hr, target), cache)

	updated, err := svc.SetRole(context.Background(), hr, "emp-1", entities.RoleManager)
	if err != nil {
		t.Fatalf("set role: %v", err)
	}
	if updated.Role != entities.RoleManager {
		t.Errorf("expected manager role, got %s", updated.Role)
	}

	// The stale snapshot must be gone under both keyspaces
	if cache.GetByID("emp-1") != nil {
		t.Error("expected cache entry invalidated by id")
	}
	if cache.GetBySubject("sub-emp-1") != nil {
		t.Error("expected cache entry invalidated by subject")
	}
}

func TestUserService_SetRoleAuthorization(t *testing.T) {
	manager := &entities.User{ID: "mgr-1", Role: entities.RoleManager}
	target := &entities.User{ID: "emp-1", Role: entities.RoleEmployee}
	svc := NewUserService(newFakeUserRepo(manager, target), auth.NewIdentityCache(time.Minute, 10))

	if _, err := svc.SetRole(context.Background(), manager, "emp-1", entities.RoleHR); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for non-HR actor, got %v", err)
	}

	hr := &entities.User{ID: "hr-1", Role: entities.RoleHR}
	svc = NewUserService(newFakeUserRepo(hr, target), auth.NewIdentityCache(time.Minute, 10))
	if _, err := svc.SetRole(context.Background(), hr, "emp-1", "czar"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown role, got %v", err)
	}
}

func TestUserService_SetManager(t *testing.T) {
	hr := &entities.User{ID: "hr-1", Role: entities.RoleHR}
	manager := &entities.User{ID: "mgr-1", Role: entities.RoleManager}
	peer := &entities.User{ID: "emp-2", Role: entities.RoleEmployee}
	target := &entities.User{ID: "emp-1", ExternalSubject: "sub-emp-1", Role: entities.RoleEmployee}
	svc := NewUserService(newFakeUserRepo(hr, manager, peer, target), auth.NewIdentityCache(time.Minute, 10))

	managerID := "mgr-1"
	updated, err := svc.SetManager(context.Background(), hr, "emp-1", &managerID)
	if err != nil {
		t.Fatalf("set manager: %v", err)
	}
	if updated.ManagerID == nil || *updated.ManagerID != "mgr-1" {
		t.Error("expected manager link recorded")
	}

	// Clearing the link
	updated, err = svc.SetManager(context.Background(), hr, "emp-1", nil)
	if err != nil {
		t.Fatalf("clear manager: %v", err)
	}
	if updated.ManagerID != nil {
		t.Error("expected manager link cleared")
	}

	selfID := "emp-1"
	if _, err := svc.SetManager(context.Background(), hr, "emp-1", &selfID); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for self-management, got %v", err)
	}

	peerID := "emp-2"
	if _, err := svc.SetManager(context.Background(), hr, "emp-1", &peerID); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for non-deciding manager, got %v", err)
	}
}
