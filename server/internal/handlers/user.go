package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/absentia/absentia/internal/auth"
	"github.com/absentia/absentia/internal/domain/entities"
)

type setRoleRequest struct {
	Role string `json:"role"`
}

type setManagerRequest struct {
	ManagerID *string `json:"manager_id"`
}

// Me handles GET /api/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request, identity *auth.Identity) {
	user, err := h.userService.Get(r.Context(), identity.UserID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, user)
}

// ListUsers handles GET /api/users?limit=50&offset=0
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request, identity *auth.Identity) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	users, total, err := h.userService.List(r.Context(), actor(identity), limit, offset)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"total": total,
	})
}

// ListTeam handles GET /api/team
func (h *Handler) ListTeam(w http.ResponseWriter, r *http.Request, identity *auth.Identity) {
	users, err := h.userService.ListTeam(r.Context(), identity.UserID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// SetRole handles PUT /api/users/{id}/role
func (h *Handler) SetRole(w http.ResponseWriter, r *http.Request, identity *auth.Identity) {
	var body setRoleRequest
	if !h.decodeJSON(w, r, &body) {
		return
	}

	user, err := h.userService.SetRole(r.Context(), actor(identity), mux.Vars(r)["id"], entities.Role(body.Role))
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, user)
}

// SetManager handles PUT /api/users/{id}/manager
func (h *Handler) SetManager(w http.ResponseWriter, r *http.Request, identity *auth.Identity) {
	var body setManagerRequest
	if !h.decodeJSON(w, r, &body) {
		return
	}

	user, err := h.userService.SetManager(r.Context(), actor(identity), mux.Vars(r)["id"], body.ManagerID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, user)
}
