package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/absentia/absentia/internal/auth"
	"github.com/absentia/absentia/internal/domain/entities"
	"github.com/absentia/absentia/internal/domain/services"
	"github.com/absentia/absentia/internal/pkg/timeutil"
)

// Handler bundles the services behind the REST endpoints
type Handler struct {
	leaveService   *services.LeaveService
	absenceService *services.AbsenceService
	userService    *services.UserService
	log            *slog.Logger
}

// NewHandler creates a new REST handler
func NewHandler(leaveService *services.LeaveService, absenceService *services.AbsenceService, userService *services.UserService) *Handler {
	return &Handler{
		leaveService:   leaveService,
		absenceService: absenceService,
		userService:    userService,
		log:            slog.Default().With(slog.String("component", "rest_handler")),
	}
}

// actor builds the acting user from the resolved identity. The snapshot
// carries everything authorization decisions need.
func actor(identity *auth.Identity) *entities.User {
	return &entities.User{
		ID:              identity.UserID,
		Email:           identity.Email,
		Role:            identity.Role,
		ExternalSubject: identity.ExternalSubject,
	}
}

// respondJSON writes a JSON response with the given status
func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			h.log.Error("failed to encode response", slog.Any("error", err))
		}
	}
}

// respondError maps a service error onto an HTTP status and writes the
// JSON error body
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := err.Error()

	switch {
	case errors.Is(err, services.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrForbidden), errors.Is(err, services.ErrSelfDecision):
		status = http.StatusForbidden
	case services.IsNotFound(err):
		status = http.StatusNotFound
	case services.IsConflict(err), errors.Is(err, services.ErrInsufficientBalance):
		status = http.StatusConflict
	default:
		h.log.Error("request failed", slog.Any("error", err))
		message = "Internal server error"
	}

	h.respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON parses the request body into dst
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	return true
}

// parseDate parses a YYYY-MM-DD date, interpreted in the requester's
// timezone when one is given and in UTC otherwise
func parseDate(value, timezone string) (time.Time, error) {
	return timeutil.ParseDateInUserTimezone(value, timezone)
}

// yearParam reads the ?year query parameter, defaulting to the current year
func yearParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return time.Now().Year(), nil
	}
	return strconv.Atoi(raw)
}
