package deriver

import (
	"fmt"

	"github.com/starford/galdr/internal/apperr"
)

// Processor backends.
const (
	ProcessorImaging = "imaging"
	ProcessorVips    = "vips"
	ProcessorNone    = "none"
)

// Processor opens source images for resizing.
type Processor interface {
	Name() string
	Open(path string) (Source, error)
}

// Source is a decoded source image. Width and Height are the true pixel
// dimensions after orientation is applied.
type Source interface {
	Width() int
	Height() int
	// Resize returns a JPEG of the given width, keeping the aspect ratio.
	Resize(width, quality int) ([]byte, error)
	// Placeholder returns a tiny blurred JPEG of the given width.
	Placeholder(width int, sigma float64, quality int) ([]byte, error)
	Close() error
}

// NewProcessor returns the named backend. It fails with
// apperr.ErrNoImageProcessor when the backend is unavailable in this build.
func NewProcessor(name string) (Processor, error) {
	switch name {
	case "", ProcessorImaging:
		return imagingProcessor{}, nil
	case ProcessorVips:
		return newVipsProcessor()
	case ProcessorNone:
		return nil, fmt.Errorf("%w: processor disabled by configuration", apperr.ErrNoImageProcessor)
	default:
		return nil, fmt.Errorf("deriver: unknown processor %q", name)
	}
}
