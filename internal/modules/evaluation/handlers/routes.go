package handlers

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RegisterRoutes registers evaluation routes under /api/dreams/{id}
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		// Provider round-trips run concurrently but can still take a while
		r.Use(middleware.Timeout(180 * time.Second))

		r.Post("/api/dreams/{id}/evaluate", h.HandleEvaluate)
	})
	r.Get("/api/dreams/{id}/evaluations", h.HandleHistory)
	r.Get("/api/dreams/{id}/decay", h.HandleDecay)
}
