package galleryservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/galdr/internal/apperr"
	"github.com/starford/galdr/internal/gallery"
	"github.com/starford/galdr/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestService_NotReadyBeforeReload(t *testing.T) {
	_, store := testutil.TestGallery(t)
	svc := NewService(store, gallery.Options{}, 0, quietLogger())
	ctx := context.Background()

	if svc.Ready() {
		t.Error("Ready() before reload")
	}
	if _, err := svc.List(ctx, 0, 10); !errors.Is(err, apperr.ErrNotReady) {
		t.Errorf("List: %v", err)
	}
	if _, _, err := svc.Search(ctx, "x", 0); !errors.Is(err, apperr.ErrNotReady) {
		t.Errorf("Search: %v", err)
	}
}

func TestService_Queries(t *testing.T) {
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

	svc := NewService(store, gallery.Options{}, 0, quietLogger())
	var events []ReloadEvent
	svc.OnReload(func(ev ReloadEvent) { events = append(events, ev) })

	ctx := context.Background()
	if _, err := svc.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Items != 16 || events[0].Err != nil {
		t.Fatalf("events = %+v", events)
	}

	page, err := svc.List(ctx, 1, 12)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 16 || len(page.Items) != 4 || page.Items[0].ID != "13" {
		t.Errorf("page = total %d, %d items, first %q", page.Total, len(page.Items), page.Items[0].ID)
	}

	if _, err := svc.Get(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get missing: %v", err)
	}
	it, err := svc.Get(ctx, "100")
	if err != nil || it.Folder != "dragon" {
		t.Errorf("Get = %+v, %v", it, err)
	}

	hits, total, err := svc.Search(ctx, "  ICE   dragon ", 0)
	if err != nil || total != 1 || hits[0].ID != "100" {
		t.Errorf("Search = %v, %d, %v", hits, total, err)
	}
	all, total, _ := svc.Search(ctx, "", 5)
	if total != 16 || len(all) != 5 {
		t.Errorf("blank search: %d of %d", len(all), total)
	}

	rel, err := svc.Related(ctx, "1", 1, 12)
	if err != nil {
		t.Fatal(err)
	}
	if rel.Total != 14 || len(rel.Items) != 12 || !rel.HasMore {
		t.Errorf("related = total %d, %d items, more %v", rel.Total, len(rel.Items), rel.HasMore)
	}
	rel, _ = svc.Related(ctx, "1", 2, 12)
	if len(rel.Items) != 14 || rel.HasMore {
		t.Errorf("related page 2 = %d items, more %v", len(rel.Items), rel.HasMore)
	}
	if _, err := svc.Related(ctx, "missing", 1, 12); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Related missing: %v", err)
	}

	tags, err := svc.PopularTags(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 2 || tags[0].Tag != "harbour" || tags[0].Count != 15 {
		t.Errorf("tags = %+v", tags)
	}
}

func TestService_ReloadInvalidatesCache(t *testing.T) {
	root, store := testutil.TestGallery(t)
	testutil.WriteItem(t, root, "a", testutil.Meta("1"))
	svc := NewService(store, gallery.Options{}, 0, quietLogger())
	ctx := context.Background()

	first, err := svc.Reload(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, total, _ := svc.Search(ctx, "harbour", 0); total != 1 {
		t.Fatalf("total = %d", total)
	}

	testutil.WriteItem(t, root, "b", testutil.Meta("2"))
	second, err := svc.Reload(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if second.Generation() <= first.Generation() {
		t.Error("generation did not advance")
	}
	if _, total, _ := svc.Search(ctx, "harbour", 0); total != 2 {
		t.Errorf("stale cached result: total = %d", total)
	}
}
