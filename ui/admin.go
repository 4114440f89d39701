package ui

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gocausal/internal/container"
)

// NewAdminRouter serves health and pprof endpoints on the profiling port
func NewAdminRouter(c *container.Container) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		status := map[string]interface{}{
			"status":   "ok",
			"sessions": len(c.Sessions.List()),
			"database": c.DB != nil,
		}
		code := http.StatusOK
		if c.DB != nil {
			if err := c.DB.PingContext(req.Context()); err != nil {
				status["status"] = "degraded"
				status["database_error"] = err.Error()
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("[Admin] Failed to write health response: %v", err)
		}
	})
	r.Mount("/debug", middleware.Profiler())

	return r
}
