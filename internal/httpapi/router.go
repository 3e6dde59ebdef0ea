package httpapi

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func RegisterRoutes(r chi.Router, app *App) {
	r.Get("/healthz", healthHandler)
	r.Get("/status", app.statusHandler)
	r.Post("/tick", app.tickHandler)
	r.Post("/tasks/{task_id}/start", app.startTaskHandler)
	r.Post("/tasks/{task_id}/cancel", app.cancelTaskHandler)
	r.Post("/rolls/{roll_id}", app.rollHandler)
}

// NewRouter builds the full handler with CORS and panic recovery.
func NewRouter(app *App, allowedOrigins ...string) chi.Router {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	RegisterRoutes(r, app)
	return r
}
