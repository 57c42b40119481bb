package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/galdr/internal/deriver"
	"github.com/starford/galdr/internal/galleryservice"
	"github.com/starford/galdr/internal/ledger"
	"github.com/starford/galdr/internal/mcpserver"
	"github.com/starford/galdr/internal/sitemap"
	"github.com/starford/galdr/internal/storage"
	"github.com/starford/galdr/internal/validator"
)

// setup resolves the options shared by the one-shot commands.
func setup(opts []Option) (*application, *slog.Logger, storage.Provider, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := app.logger
	if logger == nil {
		logger = cliLogger(os.Stderr, app.config.App.LogLevel)
	}
	store, err := storage.NewFS(app.config.Gallery.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init storage: %w", err)
	}
	return app, logger, store, nil
}

// Validate checks every item folder and prints the report: warnings and the
// success summary to out, errors and the failure summary to errOut.
// Auto-repaired records are rewritten in canonical order unless dryRun is
// set. A failed pass returns an error wrapping apperr.ErrValidationFailed.
func Validate(ctx context.Context, dryRun bool, out, errOut io.Writer, opts ...Option) error {
	_, logger, store, err := setup(opts)
	if err != nil {
		return err
	}
	rep, err := validator.ValidateGallery(ctx, store, validator.Options{Persist: !dryRun, Logger: logger})
	if err != nil {
		return err
	}
	rep.Print(out, errOut)
	return rep.Err()
}

// DeriveOptions are the per-invocation overrides of the derive command.
type DeriveOptions struct {
	// Mode overrides assets.mode when non-empty.
	Mode  string
	Force bool
}

// Derive writes meta.generated.json (and in full mode, the variants) for
// every folder and prints a one-line summary to out.
func Derive(ctx context.Context, dopts DeriveOptions, out io.Writer, opts ...Option) error {
	app, logger, store, err := setup(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	modeName := cfg.Assets.Mode
	if dopts.Mode != "" {
		modeName = dopts.Mode
	}
	mode, err := deriver.ParseMode(modeName)
	if err != nil {
		return err
	}

	proc, procErr := deriver.NewProcessor(cfg.Assets.Processor)

	var (
		db          *ledger.DB
		ledgerStore ledger.Store
	)
	if cfg.Ledger.Enabled && mode != deriver.ModeFallback && procErr == nil {
		if err := os.MkdirAll(filepath.Dir(cfg.Ledger.Path), 0o755); err != nil {
			return fmt.Errorf("create ledger dir: %w", err)
		}
		db, err = ledger.Open(cfg.Ledger.Path)
		if err != nil {
			// The ledger only saves work; derive everything without it.
			logger.Warn("ledger unavailable, deriving every item", slog.String("error", err.Error()))
		} else {
			defer db.Close()
			ledgerStore = db
		}
	}

	d, err := deriver.New(store, deriver.Options{
		Mode:               mode,
		Processor:          proc,
		ProcessorErr:       procErr,
		Widths:             cfg.Assets.Widths,
		PlaceholderWidth:   cfg.Assets.PlaceholderWidth,
		PlaceholderBlur:    cfg.Assets.PlaceholderBlur,
		PlaceholderQuality: cfg.Assets.PlaceholderQuality,
		VariantQuality:     cfg.Assets.VariantQuality,
		Workers:            cfg.Assets.Workers,
		Force:              dopts.Force,
		Ledger:             ledgerStore,
		Logger:             logger,
	})
	if err != nil {
		return err
	}

	stats, err := d.Run(ctx)
	if err != nil {
		return err
	}

	if db != nil && d.Mode() == deriver.ModeFull {
		pruneLedger(ctx, db, store, logger)
	}

	fmt.Fprintf(out, "Derived %d, skipped %d, failed %d (%s mode)\n",
		stats.Derived, stats.Skipped, stats.Failed, stats.Mode)
	if stats.Failed > 0 {
		return fmt.Errorf("derive: %d item(s) failed", stats.Failed)
	}
	return nil
}

// pruneLedger forgets folders that no longer exist.
func pruneLedger(ctx context.Context, db *ledger.DB, store storage.Provider, logger *slog.Logger) {
	folders, err := store.Folders()
	if err != nil {
		return
	}
	keep := make(map[string]struct{}, len(folders))
	for _, f := range folders {
		keep[f] = struct{}{}
	}
	n, err := db.Prune(ctx, keep)
	if err != nil {
		logger.Warn("ledger prune failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		logger.Info("ledger pruned", slog.Int("removed", n))
	}
}

// Sitemap renders sitemap.xml for the configured site URL and writes it to
// path, or to out when path is empty.
func Sitemap(ctx context.Context, path string, out io.Writer, opts ...Option) error {
	app, logger, store, err := setup(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	if cfg.Site.URL == "" {
		return fmt.Errorf("sitemap: site.url is not configured")
	}
	body, err := sitemap.Build(store, cfg.Site.URL, cfg.Site.StaticPaths)
	if err != nil {
		return err
	}
	if path == "" {
		_, err = out.Write(body)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("sitemap: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("sitemap: %w", err)
	}
	logger.Info("sitemap written", slog.String("path", path))
	return nil
}

// ServeMCP assembles the gallery once and serves the MCP tools over stdio.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, logger, store, err := setup(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	gopts, err := cfg.Gallery.Options()
	if err != nil {
		return err
	}
	svc := galleryservice.NewService(store, gopts, cfg.Cache.TTL, logger)
	if _, err := svc.Reload(ctx); err != nil {
		return err
	}
	return mcpserver.New(store, svc, app.version).ServeStdio()
}
