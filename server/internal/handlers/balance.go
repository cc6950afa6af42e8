package handlers

import (
	"net/http"

	"github.com/absentia/absentia/internal/auth"
)

// balanceView adds the derived remaining count to a balance row
type balanceView struct {
	LeaveType    string `json:"leave_type"`
	Year         int    `json:"year"`
	EntitledDays int    `json:"entitled_days"`
	UsedDays     int    `json:"used_days"`
	Remaining    int    `json:"remaining_days"`
}

// GetBalances handles GET /api/balances?year=2026
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request, identity *auth.Identity) {
	year, err := yearParam(r)
	if err != nil {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid year"})
		return
	}

	balances, err := h.leaveService.Balances(r.Context(), identity.UserID, year)
	if err != nil {
		h.respondError(w, err)
		return
	}

	views := make([]balanceView, len(balances))
	for i, b := range balances {
		views[i] = balanceView{
			LeaveType:    string(b.LeaveType),
			Year:         b.Year,
			EntitledDays: b.EntitledDays,
			UsedDays:     b.UsedDays,
			Remaining:    b.RemainingDays(),
		}
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"balances": views})
}

// YearlyReport handles GET /api/reports/leave?year=2026
func (h *Handler) YearlyReport(w http.ResponseWriter, r *http.Request, identity *auth.Identity) {
	year, err := yearParam(r)
	if err != nil {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid year"})
		return
	}

	rows, err := h.leaveService.YearlyReport(r.Context(), actor(identity), year)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"year":    year,
		"entries": rows,
	})
}
