/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/invoices/*       Invoice lifecycle
  /api/projects/*       Projects and milestones
  /api/settings/*       Reminder settings
  /api/reminders/*      Reminder pass and log
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

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
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Invoice routes
		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.ListInvoices)
			r.Post("/", h.CreateInvoice)
			r.Get("/{id}", h.GetInvoice)
			r.Put("/{id}", h.UpdateInvoice)
			r.Delete("/{id}", h.DeleteInvoice)
			r.Post("/{id}/send", h.SendInvoice)
			r.Post("/{id}/pay", h.PayInvoice)
			r.Post("/{id}/cancel", h.CancelInvoice)
			r.Get("/{id}/reminders", h.GetInvoiceReminders)
		})

		// Project and milestone routes
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjects)
			r.Post("/", h.CreateProject)
			r.Get("/{id}", h.GetProject)
			r.Post("/{id}/activate", h.ActivateContract)
			r.Post("/{id}/milestones", h.AddMilestone)
			r.Post("/{id}/milestones/{mid}/complete", h.CompleteMilestone)
			r.Post("/{id}/milestones/{mid}/approve", h.ApproveMilestone)
			r.Post("/{id}/milestones/{mid}/paid", h.MilestonePaid)
		})

		// Reminder settings routes
		r.Route("/settings", func(r chi.Router) {
			r.Get("/{userID}", h.GetSettings)
			r.Put("/{userID}", h.SaveSettings)
			r.Get("/{userID}/projects/{projectID}", h.GetProjectSettings)
			r.Put("/{userID}/projects/{projectID}", h.SaveProjectSettings)
		})

		// Reminder routes
		r.Route("/reminders", func(r chi.Router) {
			r.Post("/run", h.RunReminders)
			r.Get("/log", h.ListReminderLog)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
