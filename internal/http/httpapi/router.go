package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"rewrite-moment/internal/http/handlers"
	"rewrite-moment/internal/infra"
	"rewrite-moment/internal/middleware"
)

func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.CORS(cfg.AllowedOrigins),
		middleware.I18N(cfg.DefaultLocale),
		middleware.Logger(logger),
		middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
	)

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = w.Write([]byte(`{"error":"Method not allowed"}`))
	})

	r.Get("/healthz", app.Health)
	r.Post("/generate", app.Generate)
	r.Get("/status/*", app.Status)
	r.Post("/upload", app.Upload)

	if app.Store != nil {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(app.Store.BasePath())))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}
