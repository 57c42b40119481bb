// Package gallery assembles item folders into an immutable, ordered
// snapshot and watches the gallery root for changes that call for a new one.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/starford/galdr/internal/metrics"
	"github.com/starford/galdr/internal/models"
	"github.com/starford/galdr/internal/storage"
	"github.com/starford/galdr/internal/validator"
)

// URL prefixes used when Options leaves them empty.
const (
	DefaultMediaPrefix  = "/media"
	DefaultAssetsPrefix = "/assets"
)

// Options configures assembly.
type Options struct {
	// Order sorts the assembled items. Nil means ByNumericID.
	Order Comparator
	// MediaPrefix is the URL prefix under which item folders are served.
	MediaPrefix string
	// AssetsDir is a directory of loose images looked up by file name for
	// records that still carry the legacy "file" field. Optional.
	AssetsDir    string
	AssetsPrefix string
	Logger       *slog.Logger
}

// Assemble builds a snapshot from every folder in store. Folders with
// validation errors, later duplicates of an id and items without a
// resolvable image are left out; none of these fail the call.
func Assemble(ctx context.Context, store storage.Provider, opts Options) (*Snapshot, error) {
	start := time.Now()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	order := opts.Order
	if order == nil {
		order = ByNumericID
	}
	mediaPrefix := strings.TrimRight(opts.MediaPrefix, "/")
	if opts.MediaPrefix == "" {
		mediaPrefix = DefaultMediaPrefix
	}
	assetsPrefix := strings.TrimRight(opts.AssetsPrefix, "/")
	if opts.AssetsPrefix == "" {
		assetsPrefix = DefaultAssetsPrefix
	}

	folders, err := store.Folders()
	if err != nil {
		return nil, fmt.Errorf("gallery: assemble: %w", err)
	}

	var assets map[string]string
	if opts.AssetsDir != "" {
		assets = indexAssets(opts.AssetsDir, logger)
	}

	items := make([]models.Item, 0, len(folders))
	seen := make(map[string]string, len(folders))
	dropped := 0

	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		files, err := store.Files(folder)
		if err != nil {
			logger.Warn("gallery: cannot list folder",
				slog.String("folder", folder),
				slog.String("error", err.Error()))
			dropped++
			continue
		}
		raw, err := store.Read(storage.Join(folder, models.MetadataFile))
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logger.Warn("gallery: cannot read metadata",
					slog.String("folder", folder),
					slog.String("error", err.Error()))
			}
			dropped++
			continue
		}

		res := validator.Validate(folder, raw)
		if !res.Valid() {
			logger.Warn("gallery: invalid metadata, item skipped",
				slog.String("folder", folder),
				slog.Int("errors", len(res.Errors)),
				slog.String("first", res.Errors[0]))
			dropped++
			continue
		}
		m := res.Metadata
		if prev, dup := seen[m.ID]; dup {
			logger.Warn("gallery: duplicate id, item skipped",
				slog.String("id", m.ID),
				slog.String("folder", folder),
				slog.String("kept", prev))
			dropped++
			continue
		}

		var src string
		if name, ok := validator.FindImage(files); ok {
			src = mediaURL(mediaPrefix, folder, name)
		} else if rel, ok := assets[filepath.Base(res.LegacyFile)]; ok && res.LegacyFile != "" {
			src = assetsPrefix + "/" + rel
		} else {
			logger.Debug("gallery: no image, item skipped", slog.String("folder", folder))
			dropped++
			continue
		}
		seen[m.ID] = folder

		item := models.Item{
			ID:             m.ID,
			Folder:         folder,
			Src:            src,
			Title:          m.Title,
			Prompt:         m.Prompt,
			NegativePrompt: m.NegativePrompt,
			Style:          m.Style,
			AspectRatio:    m.AspectRatio,
			Size:           m.Size,
			Orientation:    m.Orientation,
			Tags:           m.Tags,
			Description:    m.Description,
		}
		if rec, ok := readDerived(store, folder, logger); ok {
			item.Width = rec.Width
			item.Height = rec.Height
			item.Placeholder = rec.Placeholder
			for _, v := range usableVariants(rec, files) {
				item.Variants = append(item.Variants, models.Variant{
					Width: v.Width,
					URL:   mediaURL(mediaPrefix, folder, v.URL),
				})
			}
			item.SrcSet = models.FormatSrcSet(item.Variants)
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool { return order(&items[i], &items[j]) })

	snap := NewSnapshot(items)
	snap.dropped = dropped

	metrics.AssemblyItems.Set(float64(len(items)))
	metrics.AssemblyDropped.Set(float64(dropped))
	metrics.AssemblyDuration.Observe(time.Since(start).Seconds())
	logger.Info("gallery: assembled",
		slog.Int("items", len(items)),
		slog.Int("dropped", dropped),
		slog.Uint64("generation", snap.Generation()))
	return snap, nil
}

// readDerived loads meta.generated.json. A missing or unreadable record is
// treated as absent.
func readDerived(store storage.Provider, folder string, logger *slog.Logger) (models.DerivedAsset, bool) {
	raw, err := store.Read(storage.Join(folder, models.DerivedFile))
	if err != nil {
		return models.DerivedAsset{}, false
	}
	var rec models.DerivedAsset
	if err := json.Unmarshal(raw, &rec); err != nil {
		logger.Warn("gallery: invalid derived record ignored",
			slog.String("folder", folder),
			slog.String("error", err.Error()))
		return models.DerivedAsset{}, false
	}
	if rec.Width < 0 || rec.Height < 0 {
		rec.Width, rec.Height = 0, 0
	}
	return rec, true
}

// usableVariants returns the record's variants that name a file present in
// the folder, with a positive width not above the native width, one per
// width, in ascending width order.
func usableVariants(rec models.DerivedAsset, files []string) []models.Variant {
	present := make(map[string]struct{}, len(files))
	for _, f := range files {
		present[f] = struct{}{}
	}
	byWidth := make(map[int]models.Variant, len(rec.Variants))
	for _, v := range rec.Variants {
		if v.Width <= 0 || (rec.Width > 0 && v.Width > rec.Width) {
			continue
		}
		if v.URL == "" || strings.ContainsAny(v.URL, `/\`) {
			continue
		}
		if _, ok := present[v.URL]; !ok {
			continue
		}
		if _, dup := byWidth[v.Width]; !dup {
			byWidth[v.Width] = v
		}
	}
	out := make([]models.Variant, 0, len(byWidth))
	for _, v := range byWidth {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Width < out[j].Width })
	return out
}

func mediaURL(prefix, folder, name string) string {
	return prefix + "/" + url.PathEscape(folder) + "/" + url.PathEscape(name)
}

// indexAssets maps image file names under dir to their slash-separated
// path relative to dir. The first path in walk order wins for a name.
func indexAssets(dir string, logger *slog.Logger) map[string]string {
	out := map[string]string{}
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isImageName(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return nil
		}
		if _, ok := out[d.Name()]; !ok {
			out[d.Name()] = filepath.ToSlash(rel)
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("gallery: cannot index assets",
			slog.String("dir", dir),
			slog.String("error", err.Error()))
	}
	return out
}

func isImageName(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range models.ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
