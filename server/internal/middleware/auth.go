package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/absentia/absentia/internal/auth"
)

// Authenticator turns Authorization headers into request identities and
// rejects requests that fail resolution. All adapters share the one resolver
// algorithm; only the plumbing differs.
type Authenticator struct {
	resolver *auth.Resolver
	redact   bool
	log      *slog.Logger
}

// NewAuthenticator creates an authenticator around the resolver. When redact
// is set, 401 bodies carry a generic message instead of the failure detail.
func NewAuthenticator(resolver *auth.Resolver, redact bool) *Authenticator {
	return &Authenticator{
		resolver: resolver,
		redact:   redact,
		log:      slog.Default().With(slog.String("component", "auth_middleware")),
	}
}

// RequireAuth is the gorilla/mux middleware adapter: it resolves the
// identity and stores it in the request context, or ends the request
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := a.resolver.Resolve(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			a.reject(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.SetIdentityInContext(r.Context(), identity)))
	})
}

// HandlerFunc is the handler-func adapter: it wraps a business handler that
// takes the resolved identity directly
func (a *Authenticator) HandlerFunc(handler func(w http.ResponseWriter, r *http.Request, identity *auth.Identity)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := a.resolver.Resolve(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			a.reject(w, r, err)
			return
		}

		handler(w, r, identity)
	}
}

// reject writes the failure response. Every authentication failure maps to
// 401; persistence faults map to 500 and the request fails closed.
func (a *Authenticator) reject(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusUnauthorized
	message := err.Error()

	switch {
	case errors.Is(err, auth.ErrPersistence):
		status = http.StatusInternalServerError
		message = "Internal server error"
		a.log.Error("identity resolution failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	default:
		a.log.Info("request rejected",
			slog.String("path", r.URL.Path),
			slog.String("kind", auth.FailureKind(err)))
		if a.redact {
			message = "Authentication failed"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
