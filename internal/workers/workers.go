package workers

import (
	"os"
	"runtime"
	"strconv"
)

// OverrideEnv names the variable that pins the render thread count.
const OverrideEnv = "RENDER_THREADS"

// Count returns multiplier threads per available CPU, at least one and at
// most limit (0 means no limit). Available CPUs come from GOMAXPROCS, which
// follows the container CPU quota. A positive RENDER_THREADS wins over the
// calculation but is still capped by limit.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(OverrideEnv); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	threads := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if threads < 1 {
		threads = 1
	}
	if limit > 0 && threads > limit {
		threads = limit
	}
	return threads
}

// ForCPU returns one thread per available CPU, capped at limit.
func ForCPU(limit int) int {
	return Count(1.0, limit)
}
