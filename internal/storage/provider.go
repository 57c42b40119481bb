// Package storage defines the gallery file-system abstraction.
package storage

// Provider is the interface for gallery file operations. All paths are
// relative to the gallery root and use forward slashes.
type Provider interface {
	// Root returns the absolute gallery root.
	Root() string
	// Folders returns the names of all item folders, sorted. Hidden
	// directories (leading ".") are skipped.
	Folders() ([]string, error)
	// Files returns the names of regular files directly inside folder, sorted.
	Files(folder string) ([]string, error)
	// Exists reports whether a regular file exists at path.
	Exists(path string) bool
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Abs resolves path to an absolute file-system path inside the root.
	Abs(path string) (string, error)
}
