// Package testutil provides shared test helpers for building gallery fixtures.
package testutil

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/goccy/go-json"

	"github.com/starford/galdr/internal/ledger"
	"github.com/starford/galdr/internal/models"
	"github.com/starford/galdr/internal/storage"
)

// TestLedger creates a temporary derivation ledger that is automatically closed.
func TestLedger(t *testing.T) *ledger.DB {
	t.Helper()
	db, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestGallery creates a temporary gallery root with a storage.Provider.
func TestGallery(t *testing.T) (string, storage.Provider) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// Meta returns a record that passes every field rule.
func Meta(id string) models.Metadata {
	return models.Metadata{
		ID:             id,
		Title:          "Item " + id,
		Prompt:         "a quiet harbour at dawn, item " + id,
		NegativePrompt: "",
		Style:          "photo",
		AspectRatio:    "4:3",
		Size:           "1200x900",
		Orientation:    models.OrientationLandscape,
		Tags:           []string{"harbour"},
	}
}

// WriteMeta writes m as the folder's meta.json.
func WriteMeta(t *testing.T, root, folder string, m models.Metadata) {
	t.Helper()
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	WriteFile(t, root, filepath.Join(folder, models.MetadataFile), string(data))
}

// WriteDerived writes d as the folder's meta.generated.json.
func WriteDerived(t *testing.T, root, folder string, d models.DerivedAsset) {
	t.Helper()
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	WriteFile(t, root, filepath.Join(folder, models.DerivedFile), string(data))
}

// WriteFile writes content at rel under root, creating parent directories.
func WriteFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// WriteJPEG writes a w x h gradient JPEG at rel under root.
func WriteJPEG(t *testing.T, root, rel string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := imaging.Save(img, p, imaging.JPEGQuality(80)); err != nil {
		t.Fatal(err)
	}
}

// WriteItem writes a valid record and a placeholder image file for id.
// The image bytes are not decodable; use WriteJPEG when pixels matter.
func WriteItem(t *testing.T, root, folder string, m models.Metadata) {
	t.Helper()
	WriteMeta(t, root, folder, m)
	WriteFile(t, root, filepath.Join(folder, models.ImageBasename+".jpg"), "jpeg")
}

// Folder returns a conventional folder name for a numeric id.
func Folder(n int) string {
	return "item-" + strconv.Itoa(n)
}
