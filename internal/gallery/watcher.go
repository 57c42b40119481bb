package gallery

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/galdr/internal/models"
)

// DefaultDebounce is the quiet period the watcher waits for before reloading.
const DefaultDebounce = 300 * time.Millisecond

// Watch starts an fsnotify watcher on the gallery root and calls reload once
// a burst of relevant changes has been quiet for debounce. It returns when
// ctx is cancelled.
//
// New directories created at runtime are added to the watch list. Only
// metadata, derived records and images are relevant; everything else,
// including in-flight temp files, is ignored.
func Watch(ctx context.Context, root string, debounce time.Duration, logger *slog.Logger, reload func()) error {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", root))

	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			timer = nil
			fire = nil
			logger.Debug("watcher: reloading")
			reload()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					schedule()
					continue
				}
			}

			if relevant(root, ev) {
				logger.Debug("watcher: change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// relevant reports whether ev can change the assembled gallery.
func relevant(root string, ev fsnotify.Event) bool {
	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	// A removed or renamed item folder.
	if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && filepath.Dir(ev.Name) == filepath.Clean(root) {
		return true
	}
	if name == models.MetadataFile || name == models.DerivedFile {
		return true
	}
	return strings.HasPrefix(name, models.ImageBasename) && isImageName(name)
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
