/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zap request logging (logger.Middleware)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontends

ROUTE GROUPS:
  /api/employees/*      Requests, history, balances and team calendar per employee
  /api/leaves/*         Decisions, cancellation, audit trail
  /api/approvers/*      Approver queues
  /api/admin/*          Director queue, accrual trigger
  /healthz              Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/leave-engine/logger"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(logger.Middleware(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/{id}/leaves", h.CreateLeave)
			r.Get("/{id}/leaves", h.ListLeaves)
			r.Get("/{id}/balances", h.GetBalances)
			r.Get("/{id}/team-calendar", h.GetTeamCalendar)
		})

		r.Route("/leaves", func(r chi.Router) {
			r.Post("/{id}/decisions", h.RecordDecision)
			r.Post("/{id}/cancel", h.CancelLeave)
			r.Get("/{id}/audit", h.GetAuditTrail)
		})

		r.Get("/approvers/{id}/pending", h.ListPendingForApprover)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/pending", h.ListAdminPending)
			r.Post("/accrual/run", h.RunAccrual)
		})
	})

	return r
}
