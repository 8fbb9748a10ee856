package main

import (
	"context"
	"net/http"
	"time"

	"live-gallery/internal/database"
	"live-gallery/internal/fanout"
	"live-gallery/internal/filesystem"
	"live-gallery/internal/handlers"
	"live-gallery/internal/ingest"
	"live-gallery/internal/logging"
	"live-gallery/internal/media"
	"live-gallery/internal/memory"
	"live-gallery/internal/metrics"
	"live-gallery/internal/middleware"
	"live-gallery/internal/probe"
	"live-gallery/internal/startup"
	"live-gallery/internal/supervisor"
	"live-gallery/internal/target"
	"live-gallery/internal/watcher"

	"github.com/gorilla/mux"
)

func main() {
	startTime := time.Now()

	// Set GOMEMLIMIT before anything allocates heavily
	memResult := memory.ConfigureFromEnv()

	config, err := startup.LoadWatcherConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	startup.LogMemoryConfig(memResult)

	if config.MetricsEnabled {
		metrics.InitializeMetrics()
	}

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer func() { _ = db.Close() }()
	startup.LogDatabaseInit(config.DatabasePath, time.Since(dbStart))

	// Initialize renderer
	renderer := newRenderer(config)
	defer media.ShutdownVips()
	prober := probe.New()
	startup.LogRendererInit(startup.RendererInfo{
		Backend:          renderer.Name(),
		VipsAvailable:    media.IsVipsAvailable(),
		ProbeAvailable:   prober.Available(),
		WebPQuality:      config.WebPQuality,
		ThumbnailSize:    config.ThumbnailSize,
		ThumbnailQuality: config.ThumbnailQuality,
	})

	resolver := target.New(db, config.TargetConfig, config.TargetPollInterval)

	client := fanout.NewClient(config.BridgeURL, config.ReconnectDelay)
	bridgeLog := logging.Component("bridge-client")
	client.OnMessage = func(m fanout.Message) {
		bridgeLog.Debug("ignoring inbound %s message", m.Type())
	}

	processor, err := ingest.NewProcessor(ingest.ProcessorConfig{
		Store:         db,
		Targets:       resolver,
		Renderer:      renderer,
		Layout:        media.NewLayout(config.ImagesDir),
		Publisher:     client,
		Prober:        prober,
		QuarantineDir: config.QuarantineDir,
		Retry:         filesystem.DefaultRetryConfig(),
	})
	if err != nil {
		startup.LogFatal("Failed to initialize processor: %v", err)
	}

	gate := memory.NewGate(memory.DefaultConfig())
	dispatcher := ingest.NewDispatcher(processor)
	dispatcher.SetGate(gate)

	fsWatcher := watcher.New(watcher.Config{
		Root:              config.IngestDir,
		QuietPeriod:       config.QuietPeriod,
		PollInterval:      config.StabilityPoll,
		HiddenQuietPeriod: config.HiddenQuietPeriod,
		Retry:             filesystem.DefaultRetryConfig(),
	}, dispatcher)

	status := func() handlers.IngestStatus {
		stats := dispatcher.Stats()
		return handlers.IngestStatus{
			Target:             resolver.Current(),
			Queued:             stats.Queued,
			Processing:         stats.Processing,
			Done:               stats.Done,
			Failed:             stats.Failed,
			LastDone:           stats.LastDone,
			WatchedDirectories: fsWatcher.WatchedDirectories(),
			Settling:           fsWatcher.Settling(),
			BridgeConnected:    client.Connected(),
			MemoryPaused:       gate.Paused(),
		}
	}

	tree := supervisor.NewTree("watcher", logging.Slog(), supervisor.DefaultTreeConfig())
	tree.AddPipelineService(gate)
	tree.AddPipelineService(resolver)
	tree.AddPipelineService(dispatcher)
	// Files are only picked up once there is somewhere to put them
	tree.AddPipelineService(supervisor.After(resolver.WaitReady, fsWatcher))
	tree.AddTransportService(client)
	if config.MetricsEnabled {
		tree.AddPipelineService(metrics.NewCollector(libraryStats{db}, time.Minute))
	}
	tree.AddAPIService(supervisor.NewHTTPServerService("watcher-http", &http.Server{
		Addr:              ":" + config.MetricsPort,
		Handler:           setupRouter(status, config.MetricsEnabled),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}, 5*time.Second))

	startup.LogServerStarted(startup.ServerConfig{
		Name:            "watcher",
		Port:            config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
		Endpoints: []string{
			"Ingest:        " + config.IngestDir,
			"Bridge:        " + config.BridgeURL,
		},
	})

	if err := tree.RunUntilSignal(); err != nil {
		startup.LogFatal("Watcher error: %v", err)
	}
}

// newRenderer picks the configured backend, falling back to the pure-Go
// renderer when libvips cannot start.
func newRenderer(config *startup.WatcherConfig) media.Renderer {
	opts := media.Options{
		WebPQuality:      config.WebPQuality,
		ThumbnailQuality: config.ThumbnailQuality,
		ThumbnailSize:    config.ThumbnailSize,
	}
	renderer, err := media.NewRenderer(config.Renderer, opts)
	if err != nil {
		logging.Warn("Renderer %s unavailable (%v), using %s", config.Renderer, err, media.BackendImaging)
		return media.NewImagingRenderer(opts)
	}
	return renderer
}

func setupRouter(status func() handlers.IngestStatus, metricsEnabled bool) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", handlers.WatcherHealth(status)).Methods("GET")
	r.HandleFunc("/livez", handlers.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/version", handlers.GetVersion).Methods("GET")
	if metricsEnabled {
		r.Handle("/metrics", handlers.MetricsHandler()).Methods("GET")
	}

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.ServiceName = "watcher"
	loggingConfig.LogHealthChecks = false
	return middleware.Logger(loggingConfig)(r)
}

// libraryStats adapts the database to the metrics collector.
type libraryStats struct {
	db *database.Database
}

func (s libraryStats) GetStats(ctx context.Context) (metrics.Stats, error) {
	stats, err := s.db.GetStats(ctx)
	if err != nil {
		return metrics.Stats{}, err
	}
	return metrics.Stats{
		TotalImages:  stats.Images,
		TotalVideos:  stats.Videos,
		TotalFolders: stats.Folders,
	}, nil
}

func (s libraryStats) UpdateDBMetrics() {
	s.db.UpdateDBMetrics()
}
