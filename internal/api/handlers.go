package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/galdr/internal/apperr"
	"github.com/starford/galdr/internal/galleryservice"
	"github.com/starford/galdr/internal/models"
	"github.com/starford/galdr/internal/ranking"
)

// Handler holds API route handlers.
type Handler struct {
	svc *galleryservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *galleryservice.Service) *Handler {
	return &Handler{svc: svc}
}

// SearchResponse is the body of GET /api/search.
type SearchResponse struct {
	Query string        `json:"query"`
	Items []models.Item `json:"items"`
	Total int           `json:"total"`
}

// ReloadResponse is the body of POST /api/reload.
type ReloadResponse struct {
	Generation uint64 `json:"generation"`
	Items      int    `json:"items"`
	Dropped    int    `json:"dropped"`
}

// itemID extracts the {id} path parameter. Ids may contain characters that
// clients percent-encode.
func itemID(r *http.Request) string {
	raw := chi.URLParam(r, "id")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// queryInt returns the integer query parameter name, or def when it is
// absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// writeServiceError maps service sentinels to status codes.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrNotReady):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("gallery is loading"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListItems handles GET /api/items.
//
//	@Summary		List items in assembled order
//	@Tags			items
//	@Produce		json
//	@Param			page		query		int	false	"Zero-based page"
//	@Param			page_size	query		int	false	"Page size"
//	@Success		200			{object}	galleryservice.ItemPage
//	@Failure		503			{object}	errResponse
//	@Router			/items [get]
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 0)
	size := queryInt(r, "page_size", ranking.DefaultPageSize)

	out, err := h.svc.List(r.Context(), page, size)
	if err != nil {
		writeServiceError(w, "list items", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GetItem handles GET /api/items/{id}.
//
//	@Summary		Get a single item by id
//	@Tags			items
//	@Produce		json
//	@Param			id	path		string	true	"Item id"
//	@Success		200	{object}	models.Item
//	@Failure		404	{object}	errResponse
//	@Router			/items/{id} [get]
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id := itemID(r)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}
	it, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get item", err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// RelatedItems handles GET /api/items/{id}/related.
//
//	@Summary		Items related to an item, revealed a page at a time
//	@Tags			items
//	@Produce		json
//	@Param			id			path		string	true	"Item id"
//	@Param			pages		query		int		false	"Pages revealed so far"
//	@Param			page_size	query		int		false	"Page size"
//	@Success		200			{object}	galleryservice.RelatedPage
//	@Failure		404			{object}	errResponse
//	@Router			/items/{id}/related [get]
func (h *Handler) RelatedItems(w http.ResponseWriter, r *http.Request) {
	id := itemID(r)
	pages := queryInt(r, "pages", 1)
	size := queryInt(r, "page_size", ranking.DefaultPageSize)

	out, err := h.svc.Related(r.Context(), id, pages, size)
	if err != nil {
		writeServiceError(w, "related items", err)
		return
	}
	if out.Items == nil {
		out.Items = []models.Item{}
	}
	writeJSON(w, http.StatusOK, out)
}

// Search handles GET /api/search.
//
//	@Summary		Ranked search over title, prompt and tags
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	false	"Search query; blank returns every item"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit := queryInt(r, "limit", 0)

	items, total, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeServiceError(w, "search", err)
		return
	}
	if items == nil {
		items = []models.Item{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: q, Items: items, Total: total})
}

// PopularTags handles GET /api/tags/popular.
//
//	@Summary		Most used tags with their counts
//	@Tags			tags
//	@Produce		json
//	@Param			limit	query		int	false	"Max tags"
//	@Success		200		{object}	map[string][]ranking.TagCount
//	@Router			/tags/popular [get]
func (h *Handler) PopularTags(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", ranking.DefaultTagLimit)

	tags, err := h.svc.PopularTags(r.Context(), limit)
	if err != nil {
		writeServiceError(w, "popular tags", err)
		return
	}
	if tags == nil {
		tags = []ranking.TagCount{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

// Reload handles POST /api/reload.
//
//	@Summary		Re-assemble the gallery from disk
//	@Tags			admin
//	@Produce		json
//	@Success		200	{object}	ReloadResponse
//	@Failure		401	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reload [post]
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Reload(r.Context())
	if err != nil {
		writeServiceError(w, "reload", err)
		return
	}
	writeJSON(w, http.StatusOK, ReloadResponse{
		Generation: snap.Generation(),
		Items:      snap.Len(),
		Dropped:    snap.Dropped(),
	})
}
