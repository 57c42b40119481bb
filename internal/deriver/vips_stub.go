//go:build !vips

package deriver

import (
	"fmt"

	"github.com/starford/galdr/internal/apperr"
)

func newVipsProcessor() (Processor, error) {
	return nil, fmt.Errorf("%w: this binary was built without libvips; rebuild with -tags vips or set assets.processor to %q",
		apperr.ErrNoImageProcessor, ProcessorImaging)
}
