package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	t.Setenv(EnvOverride, "")
	available := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		want       int
	}{
		{"one per cpu", 1.0, 0, available},
		{"capped", 1.0, 1, 1},
		{"never zero", 0.0001, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Count(tt.multiplier, tt.limit); got != tt.want {
				t.Errorf("Count(%v, %d) = %d, want %d", tt.multiplier, tt.limit, got, tt.want)
			}
		})
	}
}

func TestCountEnvOverride(t *testing.T) {
	t.Setenv(EnvOverride, "5")
	if got := ForCPU(0); got != 5 {
		t.Errorf("ForCPU(0) = %d, want 5", got)
	}
	if got := ForCPU(3); got != 3 {
		t.Errorf("ForCPU(3) = %d, want 3 (limit wins)", got)
	}

	t.Setenv(EnvOverride, "nope")
	if got := ForCPU(1); got != 1 {
		t.Errorf("invalid override: ForCPU(1) = %d, want 1", got)
	}
}
