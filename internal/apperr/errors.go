// Package apperr holds sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrNotReady = errors.New("gallery not loaded")

	// ErrNoImageProcessor is returned when full-mode derivation is requested
	// but no image processing backend is available.
	ErrNoImageProcessor = errors.New("image processor unavailable")

	ErrValidationFailed = errors.New("validation failed")
)
