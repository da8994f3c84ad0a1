package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// Device endpoints
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)

				r.Route("/{name}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Get("/schedule", s.handleGetDeviceSchedule)
					r.Get("/history", s.handleGetDeviceHistory)
					r.Post("/command", s.handleDeviceCommand)
				})
			})

			// Hub-wide endpoints
			r.Get("/system", s.handleGetSystem)
			r.Get("/profiles", s.handleListProfiles)
			r.Post("/commands", s.handleCommand)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	var lastPoll *time.Time
	if t := s.coord.UpdatedAt(); !t.IsZero() {
		lastPoll = &t
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"version":       s.version,
		"last_poll":     lastPoll,
		"poll_failures": s.coord.Failures(),
	})
}
