package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func tempGallery(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempGallery(t)
	content := []byte(`{"id":"1"}`)
	if err := s.Write("001/meta.json", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("001/meta.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestReadMissingWrapsNotExist(t *testing.T) {
	s := tempGallery(t)
	_, err := s.Read("nope/meta.json")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}

func TestFoldersSkipsHiddenAndFiles(t *testing.T) {
	s := tempGallery(t)
	_ = s.Write("b/meta.json", []byte("{}"))
	_ = s.Write("a/meta.json", []byte("{}"))
	_ = s.Write(".galdr/ledger.db", []byte("x"))
	_ = s.Write("readme.txt", []byte("x"))

	folders, err := s.Folders()
	if err != nil {
		t.Fatalf("Folders: %v", err)
	}
	if len(folders) != 2 || folders[0] != "a" || folders[1] != "b" {
		t.Errorf("folders = %v, want [a b]", folders)
	}
}

func TestFilesSorted(t *testing.T) {
	s := tempGallery(t)
	_ = s.Write("x/meta.json", []byte("{}"))
	_ = s.Write("x/image.jpg", []byte("jpg"))
	_ = os.MkdirAll(filepath.Join(s.Root(), "x", "sub"), 0o755)

	files, err := s.Files("x")
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(files) != 2 || files[0] != "image.jpg" || files[1] != "meta.json" {
		t.Errorf("files = %v", files)
	}
}

func TestExists(t *testing.T) {
	s := tempGallery(t)
	_ = s.Write("x/image.png", []byte("png"))
	if !s.Exists("x/image.png") {
		t.Error("expected file to exist")
	}
	if s.Exists("x") {
		t.Error("directory should not count as a file")
	}
	if s.Exists("../outside") {
		t.Error("traversal should not exist")
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempGallery(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.json",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteLeavesNoTemp(t *testing.T) {
	s := tempGallery(t)
	_ = s.Write("a/meta.json", []byte("original"))
	if err := s.Write("a/meta.json", []byte("updated")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("a/meta.json")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, "a", ".galdr-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp(t.TempDir(), "galdr-test-*")
	_ = f.Close()
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
