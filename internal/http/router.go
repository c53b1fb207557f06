package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs the API router for the service.
func NewRouter(c *Controller) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", c.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/start", c.handleStart)
		r.Post("/chunk", c.handleChunk)
		r.Post("/finish", c.handleFinish)
	})

	return r
}
