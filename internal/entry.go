// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/galdr/internal/api"
	"github.com/starford/galdr/internal/gallery"
	"github.com/starford/galdr/internal/galleryservice"
	"github.com/starford/galdr/internal/sse"
	"github.com/starford/galdr/internal/storage"
)

const sseHeartbeat = 30 * time.Second

// Run starts the HTTP server with the given options and blocks until ctx is
// cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		// Initialize structured JSON logger.
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("gallery_path", cfg.Gallery.Path),
		slog.String("order", cfg.Gallery.Order),
		slog.Bool("watch", cfg.Gallery.Watch),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure gallery directory exists.
	if err := os.MkdirAll(cfg.Gallery.Path, 0o755); err != nil {
		return fmt.Errorf("create gallery dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Gallery.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	gopts, err := cfg.Gallery.Options()
	if err != nil {
		return fmt.Errorf("gallery options: %w", err)
	}
	svc := galleryservice.NewService(store, gopts, cfg.Cache.TTL, logger)

	broker := sse.NewBroker(sseHeartbeat)
	defer broker.Close()
	svc.OnReload(func(ev galleryservice.ReloadEvent) {
		broker.PublishReload(ev.Generation, ev.Items, ev.Dropped, ev.Err)
	})

	// Initial assembly. A failure leaves the service not ready; the watcher
	// or an explicit reload can still recover.
	if _, err := svc.Reload(ctx); err != nil {
		logger.Warn("initial assembly failed", slog.String("error", err.Error()))
	}

	handler := api.NewServer(svc, store, api.Options{
		AuthEnabled:  cfg.Auth.AuthEnabled(),
		Token:        cfg.Auth.Token,
		CORSOrigins:  cfg.App.HTTP.CORSOrigins,
		RateLimit:    cfg.App.HTTP.RateLimit,
		MediaPrefix:  cfg.Gallery.MediaPrefix,
		AssetsDir:    cfg.Gallery.AssetsPath,
		AssetsPrefix: cfg.Gallery.AssetsPrefix,
		SiteURL:      cfg.Site.URL,
		StaticPaths:  cfg.Site.StaticPaths,
		Events:       broker,
	})

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           middleware.Logger(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Re-assemble on relevant changes under the gallery root.
	if cfg.Gallery.Watch {
		g.Go(func() error {
			err := gallery.Watch(gCtx, store.Root(), cfg.Gallery.Debounce, logger, func() {
				_, _ = svc.Reload(gCtx)
			})
			if err != nil {
				logger.Error("watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// SSE streams never finish on their own.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// cliLogger builds the text logger used by the one-shot commands. Their
// reports go to stdout, so log lines go to w (stderr in practice).
func cliLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
