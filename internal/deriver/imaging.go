package deriver

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP source support
)

// imagingProcessor is the pure-Go backend.
type imagingProcessor struct{}

func (imagingProcessor) Name() string { return ProcessorImaging }

func (imagingProcessor) Open(path string) (Source, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &imagingSource{img: img}, nil
}

type imagingSource struct {
	img image.Image
}

func (s *imagingSource) Width() int  { return s.img.Bounds().Dx() }
func (s *imagingSource) Height() int { return s.img.Bounds().Dy() }

func (s *imagingSource) Resize(width, quality int) ([]byte, error) {
	return encodeJPEG(imaging.Resize(s.img, width, 0, imaging.Lanczos), quality)
}

func (s *imagingSource) Placeholder(width int, sigma float64, quality int) ([]byte, error) {
	tiny := imaging.Resize(s.img, width, 0, imaging.Lanczos)
	return encodeJPEG(imaging.Blur(tiny, sigma), quality)
}

func (s *imagingSource) Close() error {
	s.img = nil
	return nil
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
