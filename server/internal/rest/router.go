// Package rest wires the HTTP API: routes, middleware, and the metrics
// endpoint.
package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/absentia/absentia/server/internal/handlers"
	"github.com/absentia/absentia/server/internal/middleware"
)

// NewRouter builds the API router. Everything under /api requires a
// resolved identity; health and metrics endpoints stay open.
func NewRouter(h *handlers.Handler, authn *middleware.Authenticator) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.LogRequest)
	r.Use(middleware.Metrics)

	// Unauthenticated surface
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/readiness", h.Readiness).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// Leave requests
	api.HandleFunc("/leave", authn.HandlerFunc(h.SubmitLeave)).Methods(http.MethodPost)
	api.HandleFunc("/leave", authn.HandlerFunc(h.ListMyLeave)).Methods(http.MethodGet)
	api.HandleFunc("/leave/all", authn.HandlerFunc(h.ListLeaveByStatus)).Methods(http.MethodGet)
	api.HandleFunc("/leave/{id}", authn.HandlerFunc(h.GetLeave)).Methods(http.MethodGet)
	api.HandleFunc("/leave/{id}/cancel", authn.HandlerFunc(h.CancelLeave)).Methods(http.MethodPost)
	api.HandleFunc("/leave/{id}/decision", authn.HandlerFunc(h.DecideLeave)).Methods(http.MethodPost)
	api.HandleFunc("/team/leave", authn.HandlerFunc(h.ListTeamLeave)).Methods(http.MethodGet)

	// Absences and conversions
	api.HandleFunc("/absences", authn.HandlerFunc(h.RecordAbsence)).Methods(http.MethodPost)
	api.HandleFunc("/absences", authn.HandlerFunc(h.ListAbsences)).Methods(http.MethodGet)
	api.HandleFunc("/absences/{id}/convert", authn.HandlerFunc(h.RequestConversion)).Methods(http.MethodPost)
	api.HandleFunc("/conversions/pending", authn.HandlerFunc(h.ListPendingConversions)).Methods(http.MethodGet)
	api.HandleFunc("/conversions/{id}/decision", authn.HandlerFunc(h.DecideConversion)).Methods(http.MethodPost)

	// Balances and reports
	api.HandleFunc("/balances", authn.HandlerFunc(h.GetBalances)).Methods(http.MethodGet)
	api.HandleFunc("/reports/leave", authn.HandlerFunc(h.YearlyReport)).Methods(http.MethodGet)

	// Users
	api.HandleFunc("/me", authn.HandlerFunc(h.Me)).Methods(http.MethodGet)
	api.HandleFunc("/users", authn.HandlerFunc(h.ListUsers)).Methods(http.MethodGet)
	api.HandleFunc("/team", authn.HandlerFunc(h.ListTeam)).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/role", authn.HandlerFunc(h.SetRole)).Methods(http.MethodPut)
	api.HandleFunc("/users/{id}/manager", authn.HandlerFunc(h.SetManager)).Methods(http.MethodPut)

	return r
}
