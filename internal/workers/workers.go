// Package workers sizes worker pools from the CPUs actually available to the
// process. GOMAXPROCS follows container CPU limits, runtime.NumCPU does not.
package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride names the environment variable that pins the worker count.
const EnvOverride = "GALDR_DERIVE_WORKERS"

// Count returns multiplier workers per available CPU, at least one, capped at
// limit when limit > 0. A positive EnvOverride value wins over the computed
// count but is still capped.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(EnvOverride); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}
	return workers
}

// ForCPU returns the worker count for CPU-bound tasks such as image resizing.
func ForCPU(limit int) int {
	return Count(1.0, limit)
}
