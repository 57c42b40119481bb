// Package galleryservice owns the live gallery snapshot and answers queries
// against it for the HTTP API and the MCP server.
package galleryservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/starford/galdr/internal/apperr"
	"github.com/starford/galdr/internal/gallery"
	"github.com/starford/galdr/internal/metrics"
	"github.com/starford/galdr/internal/models"
	"github.com/starford/galdr/internal/ranking"
	"github.com/starford/galdr/internal/storage"
)

// DefaultCacheTTL bounds how long a query result is reused within one
// snapshot generation.
const DefaultCacheTTL = 5 * time.Minute

// ItemPage is one window of the assembled order.
type ItemPage struct {
	Items    []models.Item `json:"items"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// RelatedPage is the revealed prefix of an item's related list.
type RelatedPage struct {
	Items   []models.Item `json:"items"`
	Total   int           `json:"total"`
	HasMore bool          `json:"has_more"`
}

// ReloadEvent describes the outcome of a reload.
type ReloadEvent struct {
	Generation uint64
	Items      int
	Dropped    int
	Err        error
}

// Service coordinates assembly and queries.
type Service struct {
	store   storage.Provider
	opts    gallery.Options
	logger  *slog.Logger
	results *cache.Cache

	snap atomic.Pointer[gallery.Snapshot]

	reloadMu  sync.Mutex
	hooksMu   sync.RWMutex
	onReloads []func(ReloadEvent)
}

// NewService creates a service. No snapshot is loaded until Reload.
func NewService(store storage.Provider, opts gallery.Options, cacheTTL time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	opts.Logger = logger
	return &Service{
		store:   store,
		opts:    opts,
		logger:  logger,
		results: cache.New(cacheTTL, 2*cacheTTL),
	}
}

// OnReload registers fn to be called after every reload attempt.
func (s *Service) OnReload(fn func(ReloadEvent)) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.onReloads = append(s.onReloads, fn)
}

// Reload re-assembles the gallery and swaps the snapshot in. On failure the
// previous snapshot stays live. Concurrent calls are serialised.
func (s *Service) Reload(ctx context.Context) (*gallery.Snapshot, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	snap, err := gallery.Assemble(ctx, s.store, s.opts)
	if err != nil {
		metrics.ReloadsTotal.WithLabelValues("failed").Inc()
		s.logger.Error("service: reload failed", slog.String("error", err.Error()))
		s.notify(ReloadEvent{Err: err})
		return nil, fmt.Errorf("service: reload: %w", err)
	}
	s.snap.Store(snap)
	s.results.Flush()
	metrics.ReloadsTotal.WithLabelValues("ok").Inc()
	s.notify(ReloadEvent{Generation: snap.Generation(), Items: snap.Len(), Dropped: snap.Dropped()})
	return snap, nil
}

func (s *Service) notify(ev ReloadEvent) {
	s.hooksMu.RLock()
	defer s.hooksMu.RUnlock()
	for _, fn := range s.onReloads {
		fn(ev)
	}
}

// Snapshot returns the live snapshot, or apperr.ErrNotReady before the first
// successful reload.
func (s *Service) Snapshot() (*gallery.Snapshot, error) {
	snap := s.snap.Load()
	if snap == nil {
		return nil, apperr.ErrNotReady
	}
	return snap, nil
}

// Ready reports whether a snapshot is loaded.
func (s *Service) Ready() bool { return s.snap.Load() != nil }

// List returns one page (zero-based) of items in assembled order.
func (s *Service) List(_ context.Context, page, pageSize int) (*ItemPage, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		pageSize = ranking.DefaultPageSize
	}
	if page < 0 {
		page = 0
	}
	items := ranking.Page(snap.Items(), pageSize, page)
	if items == nil {
		items = []models.Item{}
	}
	return &ItemPage{Items: items, Total: snap.Len(), Page: page, PageSize: pageSize}, nil
}

// Get returns the item with id.
func (s *Service) Get(_ context.Context, id string) (*models.Item, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	it, ok := snap.Lookup(id)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &it, nil
}

// Search ranks items against query and returns at most limit of them
// (limit <= 0 returns all) along with the total number of matches.
func (s *Service) Search(_ context.Context, query string, limit int) ([]models.Item, int, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, 0, err
	}
	norm := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	hits := cached(s, snap, "search", norm, func() []models.Item {
		return ranking.Search(snap.Items(), norm)
	})
	total := len(hits)
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit:limit]
	}
	return hits, total, nil
}

// Related returns the first pages pages of items related to id.
func (s *Service) Related(_ context.Context, id string, pages, pageSize int) (*RelatedPage, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	focal, ok := snap.Lookup(id)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	all := cached(s, snap, "related", id, func() []models.Item {
		return ranking.Related(snap.Items(), focal)
	})
	return &RelatedPage{
		Items:   ranking.Reveal(all, pageSize, pages),
		Total:   len(all),
		HasMore: ranking.HasMore(all, pageSize, pages),
	}, nil
}

// PopularTags returns the most used tags with their counts.
func (s *Service) PopularTags(_ context.Context, limit int) ([]ranking.TagCount, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return cached(s, snap, "tags", fmt.Sprint(limit), func() []ranking.TagCount {
		return ranking.TagCounts(snap.Items(), limit)
	}), nil
}

// cached memoises compute per snapshot generation, kind and argument.
// Cached slices are shared between callers and must not be modified.
func cached[T any](s *Service, snap *gallery.Snapshot, kind, arg string, compute func() T) T {
	key := fmt.Sprintf("%d:%s:%s", snap.Generation(), kind, arg)
	if v, ok := s.results.Get(key); ok {
		if out, ok := v.(T); ok {
			metrics.QueryCacheHits.WithLabelValues(kind).Inc()
			return out
		}
	}
	start := time.Now()
	out := compute()
	metrics.QueryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	s.results.SetDefault(key, out)
	return out
}
