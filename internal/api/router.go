package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starford/galdr/internal/gallery"
	"github.com/starford/galdr/internal/galleryservice"
	"github.com/starford/galdr/internal/storage"
)

// Options configures the HTTP surface.
type Options struct {
	AuthEnabled bool
	Token       string

	// CORSOrigins lists the origins allowed to call the API. Empty means any.
	CORSOrigins []string
	// RateLimit caps API requests per client IP per minute. Zero disables it.
	RateLimit int

	MediaPrefix  string
	AssetsDir    string
	AssetsPrefix string

	SiteURL     string
	StaticPaths []string

	// Events, if non-nil, is served at GET /api/events.
	Events http.Handler
}

// NewRouter creates a chi router with the API routes mounted. Reads are
// public; only POST /reload goes through the auth middleware.
func NewRouter(svc *galleryservice.Service, opts Options) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	if opts.RateLimit > 0 {
		r.Use(httprate.LimitByIP(opts.RateLimit, time.Minute))
	}

	r.Get("/items", h.ListItems)
	r.Get("/items/{id}", h.GetItem)
	r.Get("/items/{id}/related", h.RelatedItems)
	r.Get("/search", h.Search)
	r.Get("/tags/popular", h.PopularTags)

	r.With(AuthMiddleware(opts.AuthEnabled, opts.Token)).Post("/reload", h.Reload)

	if opts.Events != nil {
		r.Get("/events", opts.Events.ServeHTTP)
	}
	return r
}

// NewServer builds the root handler: the API under /api plus media,
// assets, sitemap, metrics and health endpoints.
func NewServer(svc *galleryservice.Service, store storage.Provider, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins(opts.CORSOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		if !svc.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Mount("/api", NewRouter(svc, opts))

	mh := NewMediaHandler(store, opts.AssetsDir)
	r.Get(prefixOr(opts.MediaPrefix, gallery.DefaultMediaPrefix)+"/{folder}/{file}", mh.ServeMedia)
	if opts.AssetsDir != "" {
		r.Get(prefixOr(opts.AssetsPrefix, gallery.DefaultAssetsPrefix)+"/*", mh.ServeAsset)
	}

	sh := &sitemapHandler{store: store, siteURL: opts.SiteURL, staticPaths: opts.StaticPaths}
	r.Get("/sitemap.xml", sh.ServeHTTP)

	return r
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// prefixOr mirrors the assembler's handling of URL prefixes.
func prefixOr(prefix, def string) string {
	if prefix == "" {
		return def
	}
	return strings.TrimRight(prefix, "/")
}
