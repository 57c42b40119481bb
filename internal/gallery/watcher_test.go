package gallery

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatch_ReloadsOnMetadataChange(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, root, 50*time.Millisecond, quietLogger(), func() { reloads.Add(1) })
	}()
	time.Sleep(100 * time.Millisecond)

	dir := filepath.Join(root, "new-item")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 25*time.Millisecond, func() bool {
		return reloads.Load() > 0
	}, "watcher never reloaded")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("watcher did not stop on cancel")
	}
}

func TestRelevant(t *testing.T) {
	root := filepath.FromSlash("/gallery")
	tests := []struct {
		path string
		op   fsnotify.Op
		want bool
	}{
		{"/gallery/a/meta.json", fsnotify.Write, true},
		{"/gallery/a/meta.generated.json", fsnotify.Create, true},
		{"/gallery/a/image.png", fsnotify.Create, true},
		{"/gallery/a/image-800w.jpg", fsnotify.Write, true},
		{"/gallery/a/notes.txt", fsnotify.Write, false},
		{"/gallery/a/.galdr-tmp-123", fsnotify.Create, false},
		{"/gallery/a", fsnotify.Remove, true},
		{"/gallery/a/old.txt", fsnotify.Remove, false},
	}
	for _, tt := range tests {
		ev := fsnotify.Event{Name: filepath.FromSlash(tt.path), Op: tt.op}
		if got := relevant(root, ev); got != tt.want {
			t.Errorf("relevant(%s %s) = %v, want %v", tt.op, tt.path, got, tt.want)
		}
	}
}
