package memory

import (
	"context"
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"live-gallery/internal/logging"
	"live-gallery/internal/metrics"
)

// Config holds memory backpressure configuration.
type Config struct {
	// LimitBytes is the soft memory limit (0 = use GOMEMLIMIT or no limit)
	LimitBytes int64

	// ResumeMark is the fraction of the limit below which a paused gate reopens (0.0-1.0)
	ResumeMark float64

	// PauseMark is the fraction of the limit at which the gate closes (0.0-1.0)
	PauseMark float64

	// CheckInterval is how often to sample the heap
	CheckInterval time.Duration
}

// DefaultConfig returns the defaults used by the watcher.
func DefaultConfig() Config {
	return Config{
		ResumeMark:    0.7,
		PauseMark:     0.85,
		CheckInterval: 2 * time.Second,
	}
}

// Gate closes while heap usage is critical so the ingest consumer stops
// decoding new images until the collector catches up.
type Gate struct {
	config   Config
	limit    int64
	mu       sync.RWMutex
	alloc    uint64
	paused   bool
	resumeCh chan struct{}

	// sample is replaced in tests
	sample func() uint64
}

// NewGate creates a gate for config. It stays open forever when no limit
// is known.
func NewGate(config Config) *Gate {
	limit := config.LimitBytes
	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < math.MaxInt64 {
			limit = goMemLimit
			logging.Info("Memory gate using GOMEMLIMIT: %s", formatBytes(limit))
		}
	}
	if limit == 0 {
		logging.Debug("Memory gate: no memory limit configured, backpressure disabled")
	}

	return &Gate{
		config:   config,
		limit:    limit,
		resumeCh: make(chan struct{}),
		sample: func() uint64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return stats.Alloc
		},
	}
}

// Enabled reports whether the gate has a limit to enforce.
func (g *Gate) Enabled() bool { return g.limit > 0 }

// Serve samples the heap until ctx is done. A paused gate is reopened on
// shutdown so no waiter is stranded.
func (g *Gate) Serve(ctx context.Context) error {
	if !g.Enabled() {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(g.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.check()
		case <-ctx.Done():
			g.setPaused(false, 0)
			return ctx.Err()
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (g *Gate) String() string { return "memory-gate" }

func (g *Gate) check() {
	alloc := g.sample()
	usage := float64(alloc) / float64(g.limit)
	metrics.MemoryUsageRatio.Set(usage)

	g.mu.Lock()
	g.alloc = alloc
	paused := g.paused
	g.mu.Unlock()

	switch {
	case !paused && usage >= g.config.PauseMark:
		logging.Warn("Memory critical (%.1f%% of limit), pausing ingest", usage*100)
		metrics.MemoryGCPauses.Inc()
		g.setPaused(true, usage)
		go runtime.GC()
	case paused && usage < g.config.ResumeMark:
		logging.Info("Memory recovered (%.1f%% of limit), resuming ingest", usage*100)
		g.setPaused(false, usage)
	}
}

func (g *Gate) setPaused(paused bool, usage float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused == paused {
		return
	}
	g.paused = paused
	if paused {
		metrics.MemoryPaused.Set(1)
		return
	}
	metrics.MemoryPaused.Set(0)
	close(g.resumeCh)
	g.resumeCh = make(chan struct{})
	logging.Debug("Memory gate reopened at %.1f%% usage", usage*100)
}

// Wait blocks while the gate is closed. It returns ctx.Err() if ctx ends first.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.RLock()
	if !g.paused {
		g.mu.RUnlock()
		return nil
	}
	ch := g.resumeCh
	g.mu.RUnlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Paused reports whether the gate is currently closed.
func (g *Gate) Paused() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.paused
}

// Usage returns the last sampled usage as a fraction of the limit, or 0
// when no limit is configured.
func (g *Gate) Usage() float64 {
	if g.limit == 0 {
		return 0
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return float64(g.alloc) / float64(g.limit)
}
