package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/starford/galdr/internal/gallery"
	"github.com/starford/galdr/internal/galleryservice"
	"github.com/starford/galdr/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testEnv builds a gallery of 15 harbour items plus one dragon, loads it
// and returns the root handler. An empty token means auth is disabled.
func testEnv(t *testing.T, token string) (*galleryservice.Service, http.Handler) {
	t.Helper()
	root, store := testutil.TestGallery(t)
	for i := 1; i <= 15; i++ {
		m := testutil.Meta(fmt.Sprint(i))
		m.Tags = []string{"harbour", fmt.Sprintf("tag%d", i%3)}
		testutil.WriteItem(t, root, testutil.Folder(i), m)
	}
	dragon := testutil.Meta("100")
	dragon.Title = "Ice Dragon"
	dragon.Tags = []string{"ice", "dragon"}
	testutil.WriteItem(t, root, "dragon", dragon)

	svc := galleryservice.NewService(store, gallery.Options{}, 0, quietLogger())
	if _, err := svc.Reload(t.Context()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	h := NewServer(svc, store, Options{
		AuthEnabled: token != "",
		Token:       token,
		SiteURL:     "https://gallery.example",
		StaticPaths: []string{"/about"},
	})
	return svc, h
}

func do(t *testing.T, h http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

type itemBody struct {
	ID     string `json:"id"`
	Folder string `json:"folder"`
	Src    string `json:"src"`
	Title  string `json:"title"`
}

func TestListItems(t *testing.T) {
	_, h := testEnv(t, "")

	w := do(t, h, http.MethodGet, "/api/items?page=1&page_size=12", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body struct {
		Items    []itemBody `json:"items"`
		Total    int        `json:"total"`
		Page     int        `json:"page"`
		PageSize int        `json:"page_size"`
	}
	decode(t, w, &body)
	if body.Total != 16 || len(body.Items) != 4 || body.Page != 1 || body.PageSize != 12 {
		t.Errorf("body = %+v", body)
	}
	if body.Items[0].ID != "13" {
		t.Errorf("first id on page 1 = %q, want 13", body.Items[0].ID)
	}
}

func TestListItems_Defaults(t *testing.T) {
	_, h := testEnv(t, "")

	w := do(t, h, http.MethodGet, "/api/items?page=abc", nil)
	var body struct {
		Items []itemBody `json:"items"`
		Page  int        `json:"page"`
	}
	decode(t, w, &body)
	if len(body.Items) != 12 || body.Page != 0 {
		t.Errorf("got %d items on page %d", len(body.Items), body.Page)
	}
}

func TestGetItem(t *testing.T) {
	_, h := testEnv(t, "")

	w := do(t, h, http.MethodGet, "/api/items/100", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var it itemBody
	decode(t, w, &it)
	if it.Title != "Ice Dragon" || it.Src != "/media/dragon/image.jpg" {
		t.Errorf("item = %+v", it)
	}

	w = do(t, h, http.MethodGet, "/api/items/404", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing item status = %d", w.Code)
	}
}

func TestNotReady(t *testing.T) {
	_, store := testutil.TestGallery(t)
	svc := galleryservice.NewService(store, gallery.Options{}, 0, quietLogger())
	h := NewServer(svc, store, Options{})

	if w := do(t, h, http.MethodGet, "/api/items", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("items status = %d, want 503", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/health/ready", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("ready status = %d, want 503", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/health/live", nil); w.Code != http.StatusOK {
		t.Errorf("live status = %d", w.Code)
	}
}

func TestSearch(t *testing.T) {
	_, h := testEnv(t, "")

	w := do(t, h, http.MethodGet, "/api/search?q=ice+dragon", nil)
	var body struct {
		Query string     `json:"query"`
		Items []itemBody `json:"items"`
		Total int        `json:"total"`
	}
	decode(t, w, &body)
	if body.Total != 1 || body.Items[0].ID != "100" || body.Query != "ice dragon" {
		t.Errorf("body = %+v", body)
	}

	w = do(t, h, http.MethodGet, "/api/search?q=unicorn", nil)
	decode(t, w, &body)
	if body.Total != 0 || body.Items == nil || len(body.Items) != 0 {
		t.Errorf("no-match body = %s", w.Body.String())
	}

	w = do(t, h, http.MethodGet, "/api/search?limit=3", nil)
	decode(t, w, &body)
	if body.Total != 16 || len(body.Items) != 3 {
		t.Errorf("blank query: %d of %d", len(body.Items), body.Total)
	}
}

func TestRelatedItems(t *testing.T) {
	_, h := testEnv(t, "")

	w := do(t, h, http.MethodGet, "/api/items/1/related", nil)
	var body struct {
		Items   []itemBody `json:"items"`
		Total   int        `json:"total"`
		HasMore bool       `json:"has_more"`
	}
	decode(t, w, &body)
	if body.Total != 14 || len(body.Items) != 12 || !body.HasMore {
		t.Errorf("first reveal = total %d, %d items, more %v", body.Total, len(body.Items), body.HasMore)
	}
	for _, it := range body.Items {
		if it.ID == "1" || it.ID == "100" {
			t.Errorf("unexpected related item %q", it.ID)
		}
	}

	w = do(t, h, http.MethodGet, "/api/items/1/related?pages=2", nil)
	decode(t, w, &body)
	if len(body.Items) != 14 || body.HasMore {
		t.Errorf("second reveal = %d items, more %v", len(body.Items), body.HasMore)
	}

	w = do(t, h, http.MethodGet, "/api/items/missing/related", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing focal status = %d", w.Code)
	}
}

func TestPopularTags(t *testing.T) {
	_, h := testEnv(t, "")

	w := do(t, h, http.MethodGet, "/api/tags/popular?limit=1", nil)
	var body struct {
		Tags []struct {
			Tag   string `json:"tag"`
			Count int    `json:"count"`
		} `json:"tags"`
	}
	decode(t, w, &body)
	if len(body.Tags) != 1 || body.Tags[0].Tag != "harbour" || body.Tags[0].Count != 15 {
		t.Errorf("tags = %+v", body.Tags)
	}

	w = do(t, h, http.MethodGet, "/api/tags/popular", nil)
	decode(t, w, &body)
	// harbour, tag0, tag1, tag2, ice, dragon
	if len(body.Tags) != 6 {
		t.Errorf("default limit returned %d tags", len(body.Tags))
	}
}

func TestReload_Auth(t *testing.T) {
	svc, h := testEnv(t, "s3cret")
	before, _ := svc.Snapshot()

	if w := do(t, h, http.MethodPost, "/api/reload", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/api/reload", map[string]string{"Authorization": "Bearer wrong"}); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d", w.Code)
	}

	// Reads stay public in token mode.
	if w := do(t, h, http.MethodGet, "/api/items", nil); w.Code != http.StatusOK {
		t.Errorf("public read status = %d", w.Code)
	}

	w := do(t, h, http.MethodPost, "/api/reload", map[string]string{"Authorization": "Bearer s3cret"})
	if w.Code != http.StatusOK {
		t.Fatalf("reload status = %d, body = %s", w.Code, w.Body.String())
	}
	var body ReloadResponse
	decode(t, w, &body)
	if body.Items != 16 || body.Generation <= before.Generation() {
		t.Errorf("reload = %+v (previous generation %d)", body, before.Generation())
	}
}

func TestServeMedia(t *testing.T) {
	_, h := testEnv(t, "")

	w := do(t, h, http.MethodGet, "/media/dragon/image.jpg", nil)
	if w.Code != http.StatusOK || w.Body.String() != "jpeg" {
		t.Errorf("image: status %d, body %q", w.Code, w.Body.String())
	}

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"metadata is not served", "/media/dragon/meta.json", http.StatusNotFound},
		{"missing file", "/media/dragon/image-400w.jpg", http.StatusNotFound},
		{"hidden folder", "/media/.git/image.jpg", http.StatusBadRequest},
		{"traversal in name", "/media/dragon/..image.jpg", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, h, http.MethodGet, tt.target, nil); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestServeAsset(t *testing.T) {
	_, store := testutil.TestGallery(t)
	assets := t.TempDir()
	testutil.WriteFile(t, assets, "legacy/old.png", "png")
	testutil.WriteFile(t, assets, "notes.txt", "text")

	svc := galleryservice.NewService(store, gallery.Options{AssetsDir: assets}, 0, quietLogger())
	h := NewServer(svc, store, Options{AssetsDir: assets})

	if w := do(t, h, http.MethodGet, "/assets/legacy/old.png", nil); w.Code != http.StatusOK || w.Body.String() != "png" {
		t.Errorf("asset: status %d, body %q", w.Code, w.Body.String())
	}
	if w := do(t, h, http.MethodGet, "/assets/notes.txt", nil); w.Code != http.StatusNotFound {
		t.Errorf("non-image asset status = %d", w.Code)
	}
}

func TestSitemap(t *testing.T) {
	_, h := testEnv(t, "")

	w := do(t, h, http.MethodGet, "/sitemap.xml", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/xml") {
		t.Errorf("content type = %q", ct)
	}
	for _, want := range []string{
		"<loc>https://gallery.example/</loc>",
		"<loc>https://gallery.example/about</loc>",
		"<loc>https://gallery.example/p/dragon</loc>",
	} {
		if !strings.Contains(w.Body.String(), want) {
			t.Errorf("sitemap missing %s", want)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := testEnv(t, "")
	do(t, h, http.MethodGet, "/api/items/1", nil)

	w := do(t, h, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `galdr_http_requests_total{method="GET",route="/api/items/{id}",status="200"}`) {
		t.Error("request metric not recorded under its route pattern")
	}
}

func TestCORSPreflight(t *testing.T) {
	_, h := testEnv(t, "")

	req := httptest.NewRequest(http.MethodOptions, "/api/items", nil)
	req.Header.Set("Origin", "https://site.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow origin = %q", got)
	}
}
