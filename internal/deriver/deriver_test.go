package deriver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/starford/galdr/internal/apperr"
	"github.com/starford/galdr/internal/models"
	"github.com/starford/galdr/internal/testutil"
)

func readRecord(t *testing.T, root, folder string) (models.DerivedAsset, map[string]json.RawMessage) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, folder, models.DerivedFile))
	if err != nil {
		t.Fatal(err)
	}
	var rec models.DerivedAsset
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &keys); err != nil {
		t.Fatal(err)
	}
	return rec, keys
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		w, h int
		ok   bool
	}{
		{"1024x1536", 1024, 1536, true},
		{"1920 × 1080 px", 1920, 1080, true},
		{"1024X1536", 1024, 1536, true},
		{"approx 800 x 600", 800, 600, true},
		{"large", 0, 0, false},
		{"0x600", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tt := range tests {
		w, h, ok := ParseSize(tt.in)
		if w != tt.w || h != tt.h || ok != tt.ok {
			t.Errorf("ParseSize(%q) = %d, %d, %v; want %d, %d, %v", tt.in, w, h, ok, tt.w, tt.h, tt.ok)
		}
	}
}

func TestFallback_WritesDimensionsOnly(t *testing.T) {
	root, store := testutil.TestGallery(t)
	m := testutil.Meta("1")
	m.Size = "1024x1536"
	testutil.WriteItem(t, root, "tall", m)
	bad := testutil.Meta("2")
	bad.Size = "huge"
	testutil.WriteItem(t, root, "unsized", bad)

	d, err := New(store, Options{Mode: ModeFallback})
	if err != nil {
		t.Fatal(err)
	}
	stats, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Derived != 1 || stats.Skipped != 1 || stats.Failed != 0 {
		t.Errorf("stats = %+v", stats)
	}

	rec, keys := readRecord(t, root, "tall")
	if rec.Width != 1024 || rec.Height != 1536 {
		t.Errorf("record = %+v", rec)
	}
	if len(keys) != 2 {
		t.Errorf("record keys = %v, want width and height only", keys)
	}
	if _, err := os.Stat(filepath.Join(root, "unsized", models.DerivedFile)); !os.IsNotExist(err) {
		t.Error("unparseable size should not produce a record")
	}
}

func TestFallback_KeepsFullOutput(t *testing.T) {
	root, store := testutil.TestGallery(t)

	testutil.WriteItem(t, root, "blurred", testutil.Meta("1"))
	placeholder := models.DerivedAsset{Width: 10, Height: 20, Placeholder: "data:image/jpeg;base64,AA=="}
	testutil.WriteDerived(t, root, "blurred", placeholder)

	testutil.WriteItem(t, root, "variants", testutil.Meta("2"))
	testutil.WriteDerived(t, root, "variants", models.DerivedAsset{Width: 10, Height: 20})
	testutil.WriteFile(t, root, "variants/image-400w.jpg", "jpeg")

	d, err := New(store, Options{Mode: ModeFallback})
	if err != nil {
		t.Fatal(err)
	}
	stats, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Skipped != 2 || stats.Derived != 0 {
		t.Errorf("stats = %+v", stats)
	}
	for _, f := range []string{"blurred", "variants"} {
		rec, _ := readRecord(t, root, f)
		if rec.Width != 10 || rec.Height != 20 {
			t.Errorf("%s: record overwritten: %+v", f, rec)
		}
	}
}

func TestFull_DerivesVariantsAndPlaceholder(t *testing.T) {
	root, store := testutil.TestGallery(t)
	testutil.WriteMeta(t, root, "wide", testutil.Meta("1"))
	testutil.WriteJPEG(t, root, "wide/image.jpg", 1000, 600)

	proc, err := NewProcessor(ProcessorImaging)
	if err != nil {
		t.Fatal(err)
	}
	d, err := New(store, Options{Mode: ModeAuto, Processor: proc, Workers: 2})
	if err != nil {
		t.Fatal(err)
	}
	if d.Mode() != ModeFull {
		t.Fatalf("Mode() = %s, want full", d.Mode())
	}
	stats, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Derived != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	rec, _ := readRecord(t, root, "wide")
	if rec.Width != 1000 || rec.Height != 600 {
		t.Errorf("dimensions = %dx%d", rec.Width, rec.Height)
	}
	if !strings.HasPrefix(rec.Placeholder, "data:image/jpeg;base64,") {
		t.Errorf("placeholder = %q", rec.Placeholder)
	}
	want := []models.Variant{{Width: 400, URL: "image-400w.jpg"}, {Width: 800, URL: "image-800w.jpg"}}
	if len(rec.Variants) != len(want) {
		t.Fatalf("variants = %+v", rec.Variants)
	}
	for i := range want {
		if rec.Variants[i] != want[i] {
			t.Errorf("variants[%d] = %+v, want %+v", i, rec.Variants[i], want[i])
		}
	}
	if _, err := os.Stat(filepath.Join(root, "wide", "image-1200w.jpg")); !os.IsNotExist(err) {
		t.Error("1200w variant must not be upscaled")
	}

	v, err := proc.Open(filepath.Join(root, "wide", "image-400w.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	defer v.Close()
	if v.Width() != 400 || v.Height() != 240 {
		t.Errorf("variant dimensions = %dx%d, want 400x240", v.Width(), v.Height())
	}
}

func TestFull_LedgerSkipsUnchanged(t *testing.T) {
	root, store := testutil.TestGallery(t)
	testutil.WriteMeta(t, root, "a", testutil.Meta("1"))
	testutil.WriteJPEG(t, root, "a/image.jpg", 500, 500)
	db := testutil.TestLedger(t)

	opts := Options{Mode: ModeFull, Processor: imagingProcessor{}, Ledger: db}
	run := func(opts Options) Stats {
		t.Helper()
		d, err := New(store, opts)
		if err != nil {
			t.Fatal(err)
		}
		stats, err := d.Run(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		return stats
	}

	if s := run(opts); s.Derived != 1 {
		t.Fatalf("first run: %+v", s)
	}
	if s := run(opts); s.Skipped != 1 || s.Derived != 0 {
		t.Errorf("second run: %+v", s)
	}

	// A missing variant file invalidates the skip.
	if err := os.Remove(filepath.Join(root, "a", "image-400w.jpg")); err != nil {
		t.Fatal(err)
	}
	if s := run(opts); s.Derived != 1 {
		t.Errorf("after removing variant: %+v", s)
	}

	opts.Force = true
	if s := run(opts); s.Derived != 1 {
		t.Errorf("forced run: %+v", s)
	}
}

func TestFull_PerItemFailureDoesNotAbort(t *testing.T) {
	root, store := testutil.TestGallery(t)
	testutil.WriteItem(t, root, "corrupt", testutil.Meta("1")) // image.jpg is not a JPEG
	testutil.WriteMeta(t, root, "good", testutil.Meta("2"))
	testutil.WriteJPEG(t, root, "good/image.jpg", 300, 200)
	testutil.WriteMeta(t, root, "empty", testutil.Meta("3"))

	d, err := New(store, Options{Mode: ModeFull, Processor: imagingProcessor{}})
	if err != nil {
		t.Fatal(err)
	}
	stats, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Failed != 1 || stats.Derived != 1 || stats.Skipped != 1 {
		t.Errorf("stats = %+v", stats)
	}
	rec, _ := readRecord(t, root, "good")
	if len(rec.Variants) != 0 || rec.Placeholder == "" {
		t.Errorf("300px source: record = %+v", rec)
	}
}

func TestCapabilityErrors(t *testing.T) {
	_, store := testutil.TestGallery(t)

	_, err := New(store, Options{Mode: ModeFull})
	if !errors.Is(err, apperr.ErrNoImageProcessor) {
		t.Errorf("full without processor: err = %v", err)
	}

	_, perr := NewProcessor(ProcessorNone)
	if !errors.Is(perr, apperr.ErrNoImageProcessor) {
		t.Errorf("NewProcessor(none) = %v", perr)
	}
	_, err = New(store, Options{Mode: ModeFull, ProcessorErr: perr})
	if !errors.Is(err, apperr.ErrNoImageProcessor) {
		t.Errorf("full with processor error: err = %v", err)
	}

	d, err := New(store, Options{Mode: ModeAuto, ProcessorErr: perr})
	if err != nil {
		t.Fatal(err)
	}
	if d.Mode() != ModeFallback {
		t.Errorf("auto without processor: Mode() = %s", d.Mode())
	}

	if _, err := NewProcessor("gimp"); err == nil || errors.Is(err, apperr.ErrNoImageProcessor) {
		t.Errorf("unknown processor: err = %v", err)
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"full": ModeFull, " Fallback ": ModeFallback, "": ModeAuto} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := ParseMode("turbo"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
