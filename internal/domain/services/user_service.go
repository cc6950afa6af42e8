package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/absentia/absentia/internal/auth"
	"github.com/absentia/absentia/internal/domain/entities"
	"github.com/absentia/absentia/internal/domain/repositories"
)

// UserService handles business logic for user records. Writes that change
// role or manager link invalidate the identity cache so stale snapshots are
// never served under either keyspace.
type UserService struct {
	userRepo repositories.UserRepository
	cache    *auth.IdentityCache
	log      *slog.Logger
}

// NewUserService creates a new user service
func NewUserService(userRepo repositories.UserRepository, cache *auth.IdentityCache) *UserService {
	return &UserService{
		userRepo: userRepo,
		cache:    cache,
		log:      slog.Default().With(slog.String("component", "user_service")),
	}
}

// Get retrieves a user by internal ID
func (s *UserService) Get(ctx context.Context, id string) (*entities.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// List retrieves users with pagination; HR only
func (s *UserService) List(ctx context.Context, actor *entities.User, limit, offset int) ([]*entities.User, int64, error) {
	if !actor.IsHR() {
		return nil, 0, ErrForbidden
	}

	users, total, err := s.userRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// ListTeam retrieves the direct reports of a manager
func (s *UserService) ListTeam(ctx context.Context, managerID string) ([]*entities.User, error) {
	users, err := s.userRepo.ListByManager(ctx, managerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team: %w", err)
	}
	return users, nil
}

// SetRole changes a user's role; HR only. The cached identity snapshot is
// invalidated so the next resolution observes the new role.
func (s *UserService) SetRole(ctx context.Context, actor *entities.User, userID string, role entities.Role) (*entities.User, error) {
	if !actor.IsHR() {
		return nil, ErrForbidden
	}
	if !entities.ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	if err := s.userRepo.UpdateRole(ctx, userID, role); err != nil {
		return nil, err
	}

	s.cache.InvalidateID(userID)

	s.log.Info("role updated",
		slog.String("user_id", userID),
		slog.String("role", string(role)),
		slog.String("updated_by", actor.ID))

	return s.userRepo.GetByID(ctx, userID)
}

// SetManager changes a user's manager link; HR only. Passing nil clears it.
func (s *UserService) SetManager(ctx context.Context, actor *entities.User, userID string, managerID *string) (*entities.User, error) {
	if !actor.IsHR() {
		return nil, ErrForbidden
	}
	if managerID != nil {
		if *managerID == userID {
			return nil, fmt.Errorf("%w: user cannot manage themselves", ErrInvalidInput)
		}
		manager, err := s.userRepo.GetByID(ctx, *managerID)
		if err != nil {
			return nil, err
		}
		if !manager.CanDecide() {
			return nil, fmt.Errorf("%w: designated manager lacks a deciding role", ErrInvalidInput)
		}
	}

	if err := s.userRepo.UpdateManager(ctx, userID, managerID); err != nil {
		return nil, err
	}

	s.cache.InvalidateID(userID)

	return s.userRepo.GetByID(ctx, userID)
}
