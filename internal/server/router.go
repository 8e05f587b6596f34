package server

import (
	"net/http"

	"github.com/factlineai/factline/internal/api"
	"github.com/factlineai/factline/internal/api/handlers"
	"github.com/factlineai/factline/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	RetainHandler *handlers.RetainHandler
	SearchHandler *handlers.SearchHandler
	FactHandler   *handlers.FactHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/banks/{bankID}", func(r chi.Router) {
		r.Post("/retain", cfg.RetainHandler.Retain)
		r.Post("/search", cfg.SearchHandler.Search)
		r.Get("/facts", cfg.FactHandler.List)
	})

	r.Get("/facts/{id}", cfg.FactHandler.Get)

	return r
}
