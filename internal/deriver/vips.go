//go:build vips

package deriver

import (
	"fmt"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
)

var vipsOnce sync.Once

// newVipsProcessor starts libvips once per process.
func newVipsProcessor() (Processor, error) {
	vipsOnce.Do(func() {
		vips.LoggingSettings(func(string, vips.LogLevel, string) {}, vips.LogLevelError)
		vips.Startup(&vips.Config{
			ConcurrencyLevel: 1,
			MaxCacheMem:      50 * 1024 * 1024,
			MaxCacheSize:     100,
		})
	})
	return vipsProcessor{}, nil
}

type vipsProcessor struct{}

func (vipsProcessor) Name() string { return ProcessorVips }

func (vipsProcessor) Open(path string) (Source, error) {
	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("vips load %s: %w", path, err)
	}
	if err := ref.AutoRotate(); err != nil {
		ref.Close()
		return nil, fmt.Errorf("vips rotate %s: %w", path, err)
	}
	return &vipsSource{ref: ref}, nil
}

type vipsSource struct {
	ref *vips.ImageRef
}

func (s *vipsSource) Width() int  { return s.ref.Width() }
func (s *vipsSource) Height() int { return s.ref.Height() }

func (s *vipsSource) scaled(width int) (*vips.ImageRef, error) {
	cp, err := s.ref.Copy()
	if err != nil {
		return nil, err
	}
	height := (s.ref.Height()*width + s.ref.Width()/2) / s.ref.Width()
	if height < 1 {
		height = 1
	}
	if err := cp.Thumbnail(width, height, vips.InterestingNone); err != nil {
		cp.Close()
		return nil, err
	}
	return cp, nil
}

func (s *vipsSource) Resize(width, quality int) ([]byte, error) {
	cp, err := s.scaled(width)
	if err != nil {
		return nil, fmt.Errorf("vips resize: %w", err)
	}
	defer cp.Close()
	return exportJPEG(cp, quality)
}

func (s *vipsSource) Placeholder(width int, sigma float64, quality int) ([]byte, error) {
	cp, err := s.scaled(width)
	if err != nil {
		return nil, fmt.Errorf("vips resize: %w", err)
	}
	defer cp.Close()
	if err := cp.GaussianBlur(sigma); err != nil {
		return nil, fmt.Errorf("vips blur: %w", err)
	}
	return exportJPEG(cp, quality)
}

func (s *vipsSource) Close() error {
	s.ref.Close()
	return nil
}

func exportJPEG(ref *vips.ImageRef, quality int) ([]byte, error) {
	buf, _, err := ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        quality,
		StripMetadata:  true,
		OptimizeCoding: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vips export: %w", err)
	}
	return buf, nil
}
