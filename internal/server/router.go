package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/memoro-ai/memoro/internal/api"
	"github.com/memoro-ai/memoro/internal/api/handlers"
	"github.com/memoro-ai/memoro/internal/api/middleware"
)

type RouterConfig struct {
	// APIToken enables bearer auth on the ask and periods routes when set.
	APIToken       string
	AskHandler     *handlers.AskHandler
	PeriodsHandler *handlers.PeriodsHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(cfg.APIToken))

		r.Post("/ask", cfg.AskHandler.Ask)
		r.Get("/periods", cfg.PeriodsHandler.List)
	})

	return r
}
