package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/absentia/absentia/internal/auth"
	"github.com/absentia/absentia/internal/domain/entities"
	"github.com/absentia/absentia/internal/pkg/timeutil"
)

type recordAbsenceRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Note      string `json:"note"`
	Timezone  string `json:"timezone,omitempty"`
}

type conversionRequest struct {
	LeaveType string `json:"leave_type"`
}

// RecordAbsence handles POST /api/absences
func (h *Handler) RecordAbsence(w http.ResponseWriter, r *http.Request, identity *auth.Identity) {
	var body recordAbsenceRequest
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

	absence, err := h.absenceService.Record(r.Context(), identity.UserID, start, end, body.Note)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, absence)
}

// ListAbsences handles GET /api/absences
func (h *Handler) ListAbsences(w http.ResponseWriter, r *http.Request, identity *auth.Identity) {
	absences, err := h.absenceService.List(r.Context(), identity.UserID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"absences": absences})
}

// RequestConversion handles POST /api/absences/{id}/convert
func (h *Handler) RequestConversion(w http.ResponseWriter, r *http.Request, identity *auth.Identity) {
	var body conversionRequest
	if !h.decodeJSON(w, r, &body) {
		return
	}

	conv, err := h.absenceService.RequestConversion(r.Context(), identity.UserID, mux.Vars(r)["id"], entities.LeaveType(body.LeaveType))
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, conv)
}

// ListPendingConversions handles GET /api/conversions/pending
func (h *Handler) ListPendingConversions(w http.ResponseWriter, r *http.Request, identity *auth.Identity) {
	convs, err := h.absenceService.ListPending(r.Context(), actor(identity))
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"conversions": convs})
}

// DecideConversion handles POST /api/conversions/{id}/decision
func (h *Handler) DecideConversion(w http.ResponseWriter, r *http.Request, identity *auth.Identity) {
	var body decisionRequest
	if !h.decodeJSON(w, r, &body) {
		return
	}

	conv, err := h.absenceService.Decide(r.Context(), actor(identity), mux.Vars(r)["id"], body.Approve)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, conv)
}
