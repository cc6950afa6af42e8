package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/absentia/absentia/internal/auth"
	"github.com/absentia/absentia/internal/domain/entities"
	"github.com/absentia/absentia/internal/pkg/timeutil"
)

type submitLeaveRequest struct {
	Type      string `json:"type"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason"`
	Timezone  string `json:"timezone,omitempty"`
}

type decisionRequest struct {
	Approve bool   `json:"approve"`
	Comment string `json:"comment"`
}

// SubmitLeave handles POST /api/leave
func (h *Handler) SubmitLeave(w http.ResponseWriter, r *http.Request, identity *auth.Identity) {
	var body submitLeaveRequest
	if !h.decodeJSON(w, r, &body) {
		return
	}

	if body.Timezone != "" && !timeutil.IsValidTimezone(body.Timezone) {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown timezone"})
		return
	}

	start, err := parseDate(body.StartDate, body.Timezone)
	if err != nil {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date, expected YYYY-MM-DD"})
		return
	}
	end, err := parseDate(body.EndDate, body.Timezone)
	if err != nil {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date, expected YYYY-MM-DD"})
		return
	}

	req, err := h.leaveService.Submit(r.Context(), identity.UserID, entities.LeaveType(body.Type), start, end, body.Reason)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, req)
}

// ListMyLeave handles GET /api/leave
func (h *Handler) ListMyLeave(w http.ResponseWriter, r *http.Request, identity *auth.Identity) {
	reqs, err := h.leaveService.ListOwn(r.Context(), identity.UserID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"requests": reqs})
}

// GetLeave handles GET /api/leave/{id}
func (h *Handler) GetLeave(w http.ResponseWriter, r *http.Request, identity *auth.Identity) {
	req, err := h.leaveService.Get(r.Context(), actor(identity), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, req)
}

// CancelLeave handles POST /api/leave/{id}/cancel
func (h *Handler) CancelLeave(w http.ResponseWriter, r *http.Request, identity *auth.Identity) {
	req, err := h.leaveService.Cancel(r.Context(), identity.UserID, mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, req)
}

// DecideLeave handles POST /api/leave/{id}/decision
func (h *Handler) DecideLeave(w http.ResponseWriter, r *http.Request, identity *auth.Identity) {
	var body decisionRequest
	if !h.decodeJSON(w, r, &body) {
		return
	}

	req, err := h.leaveService.Decide(r.Context(), actor(identity), mux.Vars(r)["id"], body.Approve, body.Comment)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, req)
}

// ListTeamLeave handles GET /api/team/leave
func (h *Handler) ListTeamLeave(w http.ResponseWriter, r *http.Request, identity *auth.Identity) {
	reqs, err := h.leaveService.ListTeam(r.Context(), actor(identity))
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"requests": reqs})
}

// ListLeaveByStatus handles GET /api/leave/all?status=pending
func (h *Handler) ListLeaveByStatus(w http.ResponseWriter, r *http.Request, identity *auth.Identity) {
	status := entities.LeaveStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = entities.LeavePending
	}

	reqs, err := h.leaveService.ListByStatus(r.Context(), actor(identity), status)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"requests": reqs})
}
