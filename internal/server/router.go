package server

import (
	"net/http"

	"github.com/clausa-ai/clausa/internal/api"
	"github.com/clausa-ai/clausa/internal/api/handlers"
	"github.com/clausa-ai/clausa/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	QueryHandler    *handlers.QueryHandler
	DocumentHandler *handlers.DocumentHandler
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

	r.Route("/v1", func(r chi.Router) {
		r.Post("/query", cfg.QueryHandler.Ask)

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Create)
			r.Get("/{documentID}", cfg.DocumentHandler.Get)
			r.Delete("/{documentID}", cfg.DocumentHandler.Delete)
		})
	})

	return r
}
