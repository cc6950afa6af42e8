package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/absentia/absentia/internal/domain/entities"
	"github.com/absentia/absentia/internal/pkg/metrics"
)

// Identity is the trusted, request-scoped result of a resolution
type Identity struct {
	UserID          string
	Email           string
	Role            entities.Role
	ExternalSubject string
}

// IdentityStore is the persistence contract the resolver needs: an idempotent
// insert-or-update keyed by external subject
type IdentityStore interface {
	UpsertByExternalSubject(ctx context.Context, subject, email, displayName string) (*entities.User, error)
}

// Resolver is the single authorization entry point: it turns a raw
// Authorization header into a trusted internal identity. The same algorithm
// is consumed by every transport adapter.
//
// Per request the flow is: parse header, verify token, consult the identity
// cache by external subject, on miss upsert into persistent storage and
// populate the cache under both keyspaces. Verification failures are
// authentication failures; persistence faults are system faults and the
// request fails closed.
type Resolver struct {
	verifier TokenVerifier
	cache    *IdentityCache
	store    IdentityStore
	log      *slog.Logger
}

// NewResolver creates an identity resolver
func NewResolver(verifier TokenVerifier, cache *IdentityCache, store IdentityStore) *Resolver {
	return &Resolver{
		verifier: verifier,
		cache:    cache,
		store:    store,
		log:      slog.Default().With(slog.String("component", "identity_resolver")),
	}
}

// Resolve validates the Authorization header value and returns the internal
// identity it maps to. No network or persistence work happens before the
// header parses. Authentication failures are never retried here.
func (r *Resolver) Resolve(ctx context.Context, authorization string) (*Identity, error) {
	token, err := ParseBearer(authorization)
	if err != nil {
		metrics.AuthResolutions.WithLabelValues(outcomeFor(err)).Inc()
		return nil, err
	}

	claims, err := r.verifier.Verify(ctx, token)
	if err != nil {
		metrics.AuthResolutions.WithLabelValues(outcomeFor(err)).Inc()
		r.log.Info("token rejected",
			slog.String("kind", FailureKind(err)))
		return nil, err
	}

	user := r.cache.GetBySubject(claims.Subject)
	if user == nil {
		user, err = r.store.UpsertByExternalSubject(ctx, claims.Subject, claims.Email, claims.Name)
		if err != nil {
			metrics.AuthResolutions.WithLabelValues("internal").Inc()
			r.log.Error("identity upsert failed",
				slog.String("subject", claims.Subject),
				slog.Any("error", err))
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		r.cache.Set(user)
	}

	metrics.AuthResolutions.WithLabelValues("authorized").Inc()
	return &Identity{
		UserID:          user.ID,
		Email:           user.Email,
		Role:            user.Role,
		ExternalSubject: user.ExternalSubject,
	}, nil
}

// Cache exposes the resolver's identity cache so write paths that change a
// user's role or name can invalidate entries under both keyspaces
func (r *Resolver) Cache() *IdentityCache {
	return r.cache
}

func outcomeFor(err error) string {
	switch {
	case IsInvalidArgument(err):
		return "invalid_argument"
	case IsAuthFailure(err):
		return "unauthenticated"
	default:
		return "internal"
	}
}
