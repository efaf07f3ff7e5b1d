package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/clubweb/content-proxy/pkg/auth"
	"github.com/clubweb/content-proxy/pkg/drive"
	"github.com/clubweb/content-proxy/pkg/gallery"
	"github.com/clubweb/content-proxy/pkg/news"
)

// CachePolicy holds the Cache-Control max-age per response class. Year
// indexes change once a year and get the longest listing policy; article
// and image bodies are near-immutable once published.
type CachePolicy struct {
	GalleryListing time.Duration
	NewsListing    time.Duration
	Years          time.Duration
	Article        time.Duration
	ImageContent   time.Duration
}

// DefaultCachePolicy mirrors the services' TTL classes.
func DefaultCachePolicy() CachePolicy {
	return CachePolicy{
		GalleryListing: 5 * time.Minute,
		NewsListing:    10 * time.Minute,
		Years:          time.Hour,
		Article:        time.Hour,
		ImageContent:   time.Hour,
	}
}

// Handler holds the API route handlers.
type Handler struct {
	gallery *gallery.Service
	news    *news.Service
	policy  CachePolicy
	logger  zerolog.Logger
}

// NewHandler creates a Handler. A zero policy field falls back to its
// default.
func NewHandler(galleryService *gallery.Service, newsService *news.Service, policy CachePolicy, logger zerolog.Logger) *Handler {
	def := DefaultCachePolicy()
	if policy.GalleryListing <= 0 {
		policy.GalleryListing = def.GalleryListing
	}
	if policy.NewsListing <= 0 {
		policy.NewsListing = def.NewsListing
	}
	if policy.Years <= 0 {
		policy.Years = def.Years
	}
	if policy.Article <= 0 {
		policy.Article = def.Article
	}
	if policy.ImageContent <= 0 {
		policy.ImageContent = def.ImageContent
	}
	return &Handler{
		gallery: galleryService,
		news:    newsService,
		policy:  policy,
		logger:  logger.With().Str("component", "api").Logger(),
	}
}

// Gallery handles GET /api/gallery. A bare id parameter without an action
// serves image bytes; otherwise the action discriminator routes to a JSON
// listing.
func (h *Handler) Gallery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if id := q.Get("id"); id != "" && !q.Has("action") {
		h.serveImage(w, r, id, q.Get("size"))
		return
	}

	switch q.Get("action") {
	case "list_gallery_years":
		years, hit, err := h.gallery.AvailableYears(r.Context())
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		setCacheStatus(w, hit)
		writeConditional(w, r, map[string]any{
			"success": true,
			"years":   years,
		}, h.policy.Years)

	default:
		// Unrecognized actions serve the default listing.
		year := q.Get("year")
		top := intParam(q.Get("top"), gallery.DefaultPageSize)
		skip := intParam(q.Get("skip"), 0)

		page, hit, err := h.gallery.ListImages(r.Context(), year, top, skip)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		setCacheStatus(w, hit)
		writeConditional(w, r, galleryResponse{Success: true, Page: page},
			h.policy.GalleryListing, imageModTimes(page.Images)...)
	}
}

type galleryResponse struct {
	Success bool `json:"success"`
	*gallery.Page
}

func imageModTimes(images []gallery.Image) []time.Time {
	times := make([]time.Time, len(images))
	for i := range images {
		times[i] = images[i].ModifiedAt
	}
	return times
}

// serveImage streams image bytes, bypassing the JSON envelope. A failure
// yields a JSON error body instead of partial binary.
func (h *Handler) serveImage(w http.ResponseWriter, r *http.Request, id, size string) {
	start := time.Now()
	data, mime, err := h.gallery.ImageContent(r.Context(), id, size)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(h.policy.ImageContent.Seconds())))
	w.Header().Set("X-Fetch-Time", fmt.Sprintf("%.3f", time.Since(start).Seconds()))
	_, _ = w.Write(data)
}

// News handles GET /api/news.
func (h *Handler) News(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	action := q.Get("action")
	if action == "" {
		action = "list_articles"
	}

	switch action {
	case "list_news_years":
		years, hit, err := h.news.AvailableYears(r.Context())
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		setCacheStatus(w, hit)
		writeConditional(w, r, map[string]any{
			"success": true,
			"years":   years,
		}, h.policy.Years)

	case "list_articles":
		articles, hit, err := h.news.ListArticles(r.Context(), q.Get("year"))
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		setCacheStatus(w, hit)
		writeConditional(w, r, map[string]any{
			"success":  true,
			"articles": articles,
		}, h.policy.NewsListing, articleModTimes(articles)...)

	case "article":
		year, title := q.Get("year"), q.Get("title")
		if year == "" || title == "" {
			writeError(w, http.StatusBadRequest, "missing title or year parameter")
			return
		}
		detail, err := h.news.GetArticle(r.Context(), year, title)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeConditional(w, r, articleResponse{Success: true, ArticleDetail: detail},
			h.policy.Article, detail.ModifiedAt)

	case "get_article_excerpt":
		year, title := q.Get("year"), q.Get("title")
		if year == "" || title == "" {
			writeError(w, http.StatusBadRequest, "missing title or year parameter")
			return
		}
		excerpt, err := h.news.GetArticleExcerpt(r.Context(), year, title)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"excerpt": excerpt,
		})

	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}

type articleResponse struct {
	Success bool `json:"success"`
	*news.ArticleDetail
}

func articleModTimes(articles []news.Article) []time.Time {
	times := make([]time.Time, len(articles))
	for i := range articles {
		times[i] = articles[i].ModifiedAt
	}
	return times
}

// writeServiceError maps a service failure to the JSON error envelope.
// Upstream trouble is the upstream's fault, not ours.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var transportErr *drive.TransportError
	var credErr *auth.CredentialError

	switch {
	case errors.Is(err, news.ErrArticleNotFound):
		writeError(w, http.StatusNotFound, "article not found")
	case errors.Is(err, drive.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.As(err, &credErr):
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("credential failure")
		writeError(w, http.StatusBadGateway, "authentication with upstream store failed")
	case errors.As(err, &transportErr):
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("upstream failure")
		writeError(w, http.StatusBadGateway, "upstream store unavailable")
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// setCacheStatus reports listing cache status as a debugging aid.
func setCacheStatus(w http.ResponseWriter, hit bool) {
	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
}

func intParam(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
