package metrics

import (
	"context"
	"time"

	"live-gallery/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats(ctx context.Context) (Stats, error)
}

// ConnectionReporter is implemented by stores that export pool metrics.
type ConnectionReporter interface {
	UpdateDBMetrics()
}

// Stats holds the current library statistics
type Stats struct {
	TotalImages  int
	TotalVideos  int
	TotalFolders int
}

// Collector periodically collects and updates library metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Collector{
		statsProvider: provider,
		interval:      interval,
	}
}

// Serve collects immediately and then on every interval until ctx is done.
func (c *Collector) Serve(ctx context.Context) error {
	c.collect(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Collector) String() string { return "metrics-collector" }

func (c *Collector) collect(ctx context.Context) {
	if c.statsProvider == nil {
		return
	}

	if r, ok := c.statsProvider.(ConnectionReporter); ok {
		r.UpdateDBMetrics()
	}

	stats, err := c.statsProvider.GetStats(ctx)
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	LibraryMediaFiles.WithLabelValues("image").Set(float64(stats.TotalImages))
	LibraryMediaFiles.WithLabelValues("video").Set(float64(stats.TotalVideos))
	LibraryFolders.Set(float64(stats.TotalFolders))

	logging.Debug("Metrics collected: images=%d, videos=%d, folders=%d",
		stats.TotalImages, stats.TotalVideos, stats.TotalFolders)
}
