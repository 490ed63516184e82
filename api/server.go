/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. WithActor:  X-Username resolution (all routes except signup and
                 the scenario listing)

ROUTE GROUPS:
  /api/totals              Per-user balances
  /api/expenses            Expense records
  /api/payments            Payment records
  /api/users               User directory
  /api/summary             Period reports
  /api/exports/*           CSV downloads
  /api/profiles/*          Account profiles
  /api/activity            Audit trail
  /api/backup/*            Snapshot and restore
  /api/scenarios/*         Demo scenarios

SEE ALSO:
  - handlers.go: Handler implementations
  - actor.go: Actor middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Username"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Signup happens before an account has a resolvable profile.
		r.Post("/profiles/signup", h.Signup)

		// Scenario listing is public; loading is gated inside the group.
		r.Get("/scenarios", h.ListScenarios)

		// Everything else requires a resolved actor.
		r.Group(func(r chi.Router) {
			r.Use(h.WithActor)

			r.Get("/totals", h.GetTotals)

			r.Route("/expenses", func(r chi.Router) {
				r.Get("/", h.ListExpenses)
				r.Post("/", h.CreateExpense)
			})

			r.Route("/payments", func(r chi.Router) {
				r.Get("/", h.ListPayments)
				r.Post("/", h.CreatePayment)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", h.ListUsers)
				r.Post("/", h.CreateUser)
			})

			r.Get("/summary", h.GetSummary)

			r.Route("/exports", func(r chi.Router) {
				r.Get("/expenses.csv", h.ExportExpensesCSV)
				r.Get("/payments.csv", h.ExportPaymentsCSV)
				r.Get("/summary.csv", h.ExportSummaryCSV)
			})

			r.Get("/profiles/me", h.GetMyProfile)

			r.Get("/activity", h.ListActivity)

			r.Route("/backup", func(r chi.Router) {
				r.Get("/", h.GetBackup)
				r.Post("/restore", h.RestoreBackup)
			})

			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
				r.Post("/reset", h.ResetStore)
			})
		})
	})

	return r
}
