package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"docbot/internal/http/handlers"
	"docbot/internal/middleware"
)

// NewRouter builds the ops surface: health, template listing and metrics.
func NewRouter(app *handlers.App, metrics http.Handler, log zerolog.Logger, limiter *middleware.KeyedLimiter) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(log),
		middleware.RateLimit(limiter),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/templates", app.ListTemplates)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	return r
}
