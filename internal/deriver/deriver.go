// Package deriver computes the derived-asset record of each gallery item:
// true dimensions, downscaled JPEG variants and an inline blurred
// placeholder (full mode), or dimensions parsed from the authored size
// string (fallback mode).
package deriver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/starford/galdr/internal/apperr"
	"github.com/starford/galdr/internal/checksum"
	"github.com/starford/galdr/internal/ledger"
	"github.com/starford/galdr/internal/metrics"
	"github.com/starford/galdr/internal/models"
	"github.com/starford/galdr/internal/storage"
	"github.com/starford/galdr/internal/validator"
	"github.com/starford/galdr/internal/workers"
)

// Mode selects how records are derived.
type Mode string

const (
	ModeFull     Mode = "full"
	ModeFallback Mode = "fallback"
	ModeAuto     Mode = "auto"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeFull, ModeFallback, ModeAuto:
		return m, nil
	case "":
		return ModeAuto, nil
	default:
		return "", fmt.Errorf("deriver: unknown mode %q (want full, fallback or auto)", s)
	}
}

// Defaults for full-mode output.
var DefaultWidths = []int{1200, 800, 400}

const (
	DefaultPlaceholderWidth   = 24
	DefaultPlaceholderBlur    = 1.0
	DefaultPlaceholderQuality = 40
	DefaultVariantQuality     = 76
)

// Options configures a Deriver.
type Options struct {
	Mode Mode
	// Processor is required in full mode. A nil Processor in auto mode
	// selects fallback.
	Processor Processor
	// ProcessorErr explains why Processor is nil; it is surfaced in the
	// full-mode capability error and the auto-mode warning.
	ProcessorErr error

	Widths             []int
	PlaceholderWidth   int
	PlaceholderBlur    float64
	PlaceholderQuality int
	VariantQuality     int
	// Workers caps concurrency; 0 sizes the pool from available CPUs.
	Workers int
	// Force re-derives items the ledger reports as unchanged.
	Force bool
	// Ledger is optional.
	Ledger ledger.Store
	Logger *slog.Logger
}

// Stats summarises a run.
type Stats struct {
	Mode    Mode
	Derived int
	Skipped int
	Failed  int
}

// Deriver runs derivation over a gallery.
type Deriver struct {
	store  storage.Provider
	opts   Options
	mode   Mode
	logger *slog.Logger
}

// New resolves the effective mode. Full mode without a processor fails with
// apperr.ErrNoImageProcessor; auto mode degrades to fallback with a warning.
func New(store storage.Provider, opts Options) (*Deriver, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(opts.Widths) == 0 {
		opts.Widths = DefaultWidths
	}
	if opts.PlaceholderWidth <= 0 {
		opts.PlaceholderWidth = DefaultPlaceholderWidth
	}
	if opts.PlaceholderBlur <= 0 {
		opts.PlaceholderBlur = DefaultPlaceholderBlur
	}
	if opts.PlaceholderQuality <= 0 {
		opts.PlaceholderQuality = DefaultPlaceholderQuality
	}
	if opts.VariantQuality <= 0 {
		opts.VariantQuality = DefaultVariantQuality
	}
	widths := append([]int(nil), opts.Widths...)
	sort.Sort(sort.Reverse(sort.IntSlice(widths)))
	opts.Widths = widths

	mode := opts.Mode
	if mode == "" {
		mode = ModeAuto
	}
	switch mode {
	case ModeFull:
		if opts.Processor == nil {
			cause := opts.ProcessorErr
			if cause == nil {
				cause = apperr.ErrNoImageProcessor
			}
			if !errors.Is(cause, apperr.ErrNoImageProcessor) {
				cause = fmt.Errorf("%w: %w", apperr.ErrNoImageProcessor, cause)
			}
			return nil, fmt.Errorf("deriver: full mode: %w (set assets.processor to %q or run with --mode fallback)",
				cause, ProcessorImaging)
		}
	case ModeAuto:
		if opts.Processor != nil {
			mode = ModeFull
		} else {
			attrs := []any{}
			if opts.ProcessorErr != nil {
				attrs = append(attrs, slog.String("error", opts.ProcessorErr.Error()))
			}
			logger.Warn("deriver: no image processor, using fallback mode", attrs...)
			mode = ModeFallback
		}
	case ModeFallback:
	default:
		return nil, fmt.Errorf("deriver: unknown mode %q", mode)
	}

	return &Deriver{store: store, opts: opts, mode: mode, logger: logger}, nil
}

// Mode returns the effective mode after auto resolution.
func (d *Deriver) Mode() Mode { return d.mode }

type outcome string

const (
	outcomeDerived outcome = "derived"
	outcomeSkipped outcome = "skipped"
	outcomeFailed  outcome = "failed"
)

// Run derives every folder. Per-item failures are logged and counted and
// never stop the run; the returned error is reserved for cancellation and
// failure to enumerate the gallery.
func (d *Deriver) Run(ctx context.Context) (Stats, error) {
	folders, err := d.store.Folders()
	if err != nil {
		return Stats{}, fmt.Errorf("deriver: %w", err)
	}

	var (
		mu    sync.Mutex
		stats = Stats{Mode: d.mode}
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers.ForCPU(d.opts.Workers))

	for _, folder := range folders {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			var res outcome
			if d.mode == ModeFull {
				res = d.full(ctx, folder)
			} else {
				res = d.fallback(folder)
			}
			metrics.DeriveDuration.Observe(time.Since(start).Seconds())
			metrics.DeriveItemsTotal.WithLabelValues(string(d.mode), string(res)).Inc()

			mu.Lock()
			defer mu.Unlock()
			switch res {
			case outcomeDerived:
				stats.Derived++
			case outcomeSkipped:
				stats.Skipped++
			case outcomeFailed:
				stats.Failed++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	d.logger.Info("deriver: run complete",
		slog.String("mode", string(d.mode)),
		slog.Int("derived", stats.Derived),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed))
	return stats, nil
}

func (d *Deriver) fail(folder, step string, err error) outcome {
	d.logger.Error("deriver: item failed",
		slog.String("folder", folder),
		slog.String("step", step),
		slog.String("error", err.Error()))
	return outcomeFailed
}

func (d *Deriver) full(ctx context.Context, folder string) outcome {
	files, err := d.store.Files(folder)
	if err != nil {
		return d.fail(folder, "list", err)
	}
	name, ok := validator.FindImage(files)
	if !ok {
		d.logger.Warn("deriver: no input image", slog.String("folder", folder))
		return outcomeSkipped
	}
	abs, err := d.store.Abs(storage.Join(folder, name))
	if err != nil {
		return d.fail(folder, "resolve", err)
	}

	sum, err := checksum.File(abs)
	if err != nil {
		return d.fail(folder, "checksum", err)
	}
	if !d.opts.Force && d.unchanged(ctx, folder, sum) {
		d.logger.Debug("deriver: unchanged, skipping", slog.String("folder", folder))
		return outcomeSkipped
	}

	src, err := d.opts.Processor.Open(abs)
	if err != nil {
		return d.fail(folder, "decode", err)
	}
	defer src.Close()

	width, height := src.Width(), src.Height()
	if width <= 0 || height <= 0 {
		return d.fail(folder, "decode", fmt.Errorf("invalid dimensions %dx%d", width, height))
	}

	// Every output is computed before anything is written.
	type output struct {
		variant models.Variant
		data    []byte
	}
	var outputs []output
	for _, w := range d.opts.Widths {
		if w <= 0 || w > width {
			continue
		}
		data, err := src.Resize(w, d.opts.VariantQuality)
		if err != nil {
			return d.fail(folder, "resize", err)
		}
		outputs = append(outputs, output{
			variant: models.Variant{Width: w, URL: models.VariantName(w, ".jpg")},
			data:    data,
		})
	}
	tiny, err := src.Placeholder(d.opts.PlaceholderWidth, d.opts.PlaceholderBlur, d.opts.PlaceholderQuality)
	if err != nil {
		return d.fail(folder, "placeholder", err)
	}

	record := models.DerivedAsset{
		Width:       width,
		Height:      height,
		Placeholder: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(tiny),
	}
	for i := len(outputs) - 1; i >= 0; i-- {
		out := outputs[i]
		if err := d.store.Write(storage.Join(folder, out.variant.URL), out.data); err != nil {
			return d.fail(folder, "write", err)
		}
		record.Variants = append(record.Variants, out.variant)
	}
	if err := d.writeRecord(folder, record); err != nil {
		return d.fail(folder, "write", err)
	}

	if d.opts.Ledger != nil {
		err := d.opts.Ledger.Put(ctx, ledger.Entry{
			Folder:         folder,
			SourceChecksum: sum,
			Mode:           string(ModeFull),
			Width:          width,
			Height:         height,
			Variants:       record.Variants,
		})
		if err != nil {
			d.logger.Warn("deriver: ledger update failed",
				slog.String("folder", folder),
				slog.String("error", err.Error()))
		}
	}

	d.logger.Info("deriver: item derived",
		slog.String("folder", folder),
		slog.Int("variants", len(record.Variants)))
	return outcomeDerived
}

// unchanged reports whether the ledger holds an entry for the same source
// bytes and every output it lists is still on disk. Ledger failures count as
// changed.
func (d *Deriver) unchanged(ctx context.Context, folder, sum string) bool {
	if d.opts.Ledger == nil {
		return false
	}
	e, ok, err := d.opts.Ledger.Get(ctx, folder)
	if err != nil {
		d.logger.Warn("deriver: ledger lookup failed",
			slog.String("folder", folder),
			slog.String("error", err.Error()))
		return false
	}
	if !ok || e.SourceChecksum != sum || e.Mode != string(ModeFull) {
		return false
	}
	if !d.store.Exists(storage.Join(folder, models.DerivedFile)) {
		return false
	}
	for _, v := range e.Variants {
		if !d.store.Exists(storage.Join(folder, v.URL)) {
			return false
		}
	}
	return true
}

var variantFileRe = regexp.MustCompile(`(?i)^image-\d+w\.(jpe?g|png|webp)$`)

func (d *Deriver) fallback(folder string) outcome {
	raw, err := d.store.Read(storage.Join(folder, models.MetadataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return outcomeSkipped
		}
		return d.fail(folder, "read", err)
	}

	if d.hasFullOutput(folder) {
		d.logger.Debug("deriver: full-mode output present, skipping", slog.String("folder", folder))
		return outcomeSkipped
	}

	var meta struct {
		Size any `json:"size"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		d.logger.Debug("deriver: unreadable metadata, skipping",
			slog.String("folder", folder),
			slog.String("error", err.Error()))
		return outcomeSkipped
	}
	size, _ := meta.Size.(string)
	width, height, ok := ParseSize(size)
	if !ok {
		return outcomeSkipped
	}

	if err := d.writeRecord(folder, models.DerivedAsset{Width: width, Height: height}); err != nil {
		return d.fail(folder, "write", err)
	}
	d.logger.Info("deriver: item derived from size",
		slog.String("folder", folder),
		slog.Int("width", width),
		slog.Int("height", height))
	return outcomeDerived
}

// hasFullOutput reports whether the folder carries a record produced by a
// full-mode run: the record exists and has a placeholder, or variant files
// sit next to it.
func (d *Deriver) hasFullOutput(folder string) bool {
	raw, err := d.store.Read(storage.Join(folder, models.DerivedFile))
	if err != nil {
		return false
	}
	var rec models.DerivedAsset
	if json.Unmarshal(raw, &rec) == nil && rec.Placeholder != "" {
		return true
	}
	files, err := d.store.Files(folder)
	if err != nil {
		return false
	}
	for _, f := range files {
		if variantFileRe.MatchString(f) {
			return true
		}
	}
	return false
}

func (d *Deriver) writeRecord(folder string, rec models.DerivedAsset) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return d.store.Write(storage.Join(folder, models.DerivedFile), append(data, '\n'))
}

var sizeRe = regexp.MustCompile(`(\d+)\s*[x×]\s*(\d+)`)

// ParseSize extracts WIDTHxHEIGHT from a free-form size string such as
// "1024x1536" or "1920 × 1080 px". Zero dimensions do not parse.
func ParseSize(size string) (width, height int, ok bool) {
	m := sizeRe.FindStringSubmatch(strings.ToLower(size))
	if m == nil {
		return 0, 0, false
	}
	w, err1 := strconv.Atoi(m[1])
	h, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}
