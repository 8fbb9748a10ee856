package memory

import (
	"fmt"
	"math"
	"os"
	"runtime/debug"
	"strings"

	"live-gallery/internal/logging"
	"live-gallery/internal/workers"

	"github.com/dustin/go-humanize"
)

// libvips and libwebp allocate outside the Go heap, so GOMEMLIMIT is the
// container limit minus a reserve for them. The default reserve covers the
// vips operation cache plus one decoded source per render thread.
const (
	RenderCacheReserve     = 64 << 20
	RenderPerThreadReserve = 96 << 20

	// MinHeapBytes is the smallest heap left after the reserve. A reserve
	// that would go below it is halved against the container limit.
	MinHeapBytes = 128 << 20

	// RenderReserveEnv overrides the computed reserve, in bytes or with a
	// unit suffix (KiB, MiB, GB, ...).
	RenderReserveEnv = "RENDER_RESERVE"
)

// ConfigResult describes how the container limit was split.
type ConfigResult struct {
	Configured bool

	// Source is "GOMEMLIMIT", "MEMORY_LIMIT" or "none".
	Source string

	ContainerLimit int64
	RenderReserve  int64
	GoMemLimit     int64

	// RenderThreads is the thread count the default reserve was sized for.
	RenderThreads int
}

// DefaultRenderReserve returns the native memory held back for threads
// render threads.
func DefaultRenderReserve(threads int) int64 {
	if threads < 1 {
		threads = 1
	}
	return RenderCacheReserve + int64(threads)*RenderPerThreadReserve
}

// ConfigureFromEnv sets GOMEMLIMIT from MEMORY_LIMIT minus the renderer
// reserve. An explicit GOMEMLIMIT wins and is only reported. Call it early
// in main, before the renderer starts.
func ConfigureFromEnv() ConfigResult {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		result := ConfigResult{Source: "GOMEMLIMIT"}
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s, renderer reserve not applied", env)
		return result
	}

	limitStr := os.Getenv("MEMORY_LIMIT")
	if limitStr == "" {
		logging.Debug("MEMORY_LIMIT not set, GOMEMLIMIT will not be configured automatically")
		return ConfigResult{Source: "none"}
	}
	containerLimit, err := parseSize(limitStr)
	if err != nil || containerLimit <= 0 {
		logging.Warn("Failed to parse MEMORY_LIMIT %q: %v", limitStr, err)
		return ConfigResult{Source: "none"}
	}

	threads := workers.ForCPU(4)
	reserve := DefaultRenderReserve(threads)
	if env := os.Getenv(RenderReserveEnv); env != "" {
		if v, err := parseSize(env); err == nil && v >= 0 {
			reserve = v
		} else {
			logging.Warn("Invalid %s %q, using %s", RenderReserveEnv, env, formatBytes(reserve))
		}
	}
	if containerLimit-reserve < MinHeapBytes {
		logging.Warn("Renderer reserve %s leaves less than %s of %s for the heap, reserving half instead",
			formatBytes(reserve), formatBytes(MinHeapBytes), formatBytes(containerLimit))
		reserve = containerLimit / 2
	}

	goMemLimit := containerLimit - reserve
	debug.SetMemoryLimit(goMemLimit)

	logging.Info("Configured GOMEMLIMIT: %s (%s container, %s reserved for %d render thread(s))",
		formatBytes(goMemLimit), formatBytes(containerLimit), formatBytes(reserve), threads)

	return ConfigResult{
		Configured:     true,
		Source:         "MEMORY_LIMIT",
		ContainerLimit: containerLimit,
		RenderReserve:  reserve,
		GoMemLimit:     goMemLimit,
		RenderThreads:  threads,
	}
}

// parseSize reads a byte count such as "536870912", "512MiB" or "2GB".
func parseSize(s string) (int64, error) {
	v, err := humanize.ParseBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("size %q out of range", s)
	}
	return int64(v), nil
}

func formatBytes(b int64) string {
	if b < 0 {
		b = 0
	}
	return humanize.IBytes(uint64(b))
}
