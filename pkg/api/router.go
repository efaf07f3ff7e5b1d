package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/clubweb/content-proxy/pkg/gallery"
	"github.com/clubweb/content-proxy/pkg/news"
)

// NewRouter creates a chi router with all routes mounted: the two action
// endpoints under /api, a liveness probe and the Prometheus scrape
// endpoint.
func NewRouter(galleryService *gallery.Service, newsService *news.Service, policy CachePolicy, allowedOrigins []string, logger zerolog.Logger) chi.Router {
	h := NewHandler(galleryService, newsService, policy, logger)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(CORS(allowedOrigins))

	r.Get("/api/gallery", instrument("gallery", h.Gallery))
	r.Get("/api/news", instrument("news", h.News))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
