package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/galdr/internal/models"
	"github.com/starford/galdr/internal/sitemap"
	"github.com/starford/galdr/internal/storage"
)

// MediaHandler serves item images, their variants and loose legacy assets.
// Only image files are ever served.
type MediaHandler struct {
	store     storage.Provider
	assetsDir string
}

// NewMediaHandler creates a handler over the gallery store. assetsDir may
// be empty.
func NewMediaHandler(store storage.Provider, assetsDir string) *MediaHandler {
	return &MediaHandler{store: store, assetsDir: assetsDir}
}

// safeName validates that name is a plain image file name (no path
// separators, no traversal).
func safeName(name string) error {
	if name == "" {
		return fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != name || cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || strings.HasPrefix(cleaned, ".") {
		return fmt.Errorf("invalid filename: %s", name)
	}
	return nil
}

func isImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range models.ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ServeMedia handles GET <media prefix>/{folder}/{file}.
func (h *MediaHandler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	folder := chi.URLParam(r, "folder")
	file := chi.URLParam(r, "file")
	if err := safeName(folder); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := safeName(file); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !isImage(file) {
		http.NotFound(w, r)
		return
	}
	abs, err := h.store.Abs(storage.Join(folder, file))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	serveFile(w, r, abs)
}

// ServeAsset handles GET <assets prefix>/* for images under the assets
// directory, nested paths included.
func (h *MediaHandler) ServeAsset(w http.ResponseWriter, r *http.Request) {
	rel := chi.URLParam(r, "*")
	for _, part := range strings.Split(rel, "/") {
		if err := safeName(part); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if !isImage(rel) {
		http.NotFound(w, r)
		return
	}
	root, err := filepath.Abs(h.assetsDir)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if !strings.HasPrefix(abs, root+string(os.PathSeparator)) {
		http.Error(w, "path escapes assets directory", http.StatusBadRequest)
		return
	}
	serveFile(w, r, abs)
}

func serveFile(w http.ResponseWriter, r *http.Request, abs string) {
	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, abs)
}

type sitemapHandler struct {
	store       storage.Provider
	siteURL     string
	staticPaths []string
}

// ServeHTTP handles GET /sitemap.xml. Without a configured site URL the
// request's own scheme and host are used.
func (h *sitemapHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	base := h.siteURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	body, err := sitemap.Build(h.store, base, h.staticPaths)
	if err != nil {
		slog.Error("sitemap failed", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = w.Write(body)
}
