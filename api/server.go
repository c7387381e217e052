/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to
  handlers.

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
  4. CORS:       Cross-origin requests for the platform frontend

ROUTE GROUPS:
  /api/projects/{projectID}/assessments/*  Assessment lifecycle
  /api/tasks/*                             Grade-task status
  /api/internal/*                          Operator tooling
  /healthz                                 Liveness probe

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
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/projects/{projectID}/assessments", func(r chi.Router) {
			r.Post("/", h.CreateAssessment)
			r.Get("/", h.ListAssessments)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetAssessment)
				r.Put("/status", h.UpdateStatus)
				r.Put("/responses", h.UpdateResponses)
				r.Get("/results", h.GetResults)
				r.Put("/items/{itemID}/grade", h.OverrideGrade)
			})
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/{id}", h.GetTask)
		})

		// Operator tooling
		r.Route("/internal", func(r chi.Router) {
			r.Post("/grade-calculations", h.ReplayGradeCalculation)
			r.Post("/demo-data", h.SeedDemo)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
