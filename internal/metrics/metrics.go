package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_gallery_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "live_gallery_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_gallery_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_gallery_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "live_gallery_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "live_gallery_db_transaction_duration_seconds",
			Help:    "Duration of database transactions by outcome",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"outcome"}, // commit, rollback
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "live_gallery_db_rows_affected",
			Help:    "Rows written per statement",
			Buckets: []float64{1, 2, 3, 5, 10},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_gallery_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Filesystem metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_gallery_filesystem_retry_attempts_total",
			Help: "Retries issued after a stale file handle error",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_gallery_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_gallery_filesystem_retry_failures_total",
			Help: "Operations that still failed after all retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_gallery_filesystem_stale_errors_total",
			Help: "ESTALE errors observed",
		},
		[]string{"operation"},
	)

	FilesystemMovesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_gallery_filesystem_moves_total",
			Help: "File moves by mode",
		},
		[]string{"mode"}, // rename, copy
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_gallery_watcher_events_total",
			Help: "Filesystem notifications received by operation",
		},
		[]string{"op"},
	)

	WatcherWatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_gallery_watcher_watched_directories",
			Help: "Directories currently registered with the watcher",
		},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "live_gallery_watcher_errors_total",
			Help: "Errors reported by the filesystem watcher",
		},
	)

	WatcherFilesReady = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "live_gallery_watcher_files_ready_total",
			Help: "Files whose size stabilized and were handed to the dispatcher",
		},
	)

	WatcherAbandonedRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "live_gallery_watcher_abandoned_removed_total",
			Help: "Hidden files removed after staying unchanged past the hidden quiet period",
		},
	)

	WatcherStabilizationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "live_gallery_watcher_stabilization_duration_seconds",
			Help:    "Time from first notification to a stable file size",
			Buckets: []float64{1, 1.5, 2, 3, 5, 10, 30, 60, 120},
		},
	)
)

// Ingest metrics
var (
	IngestQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_gallery_ingest_queue_depth",
			Help: "Paths waiting in the ingest queue",
		},
	)

	IngestStateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_gallery_ingest_state_transitions_total",
			Help: "Per-file state transitions",
		},
		[]string{"state"},
	)

	IngestFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_gallery_ingest_files_total",
			Help: "Files finished by the ingest processor by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	IngestProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "live_gallery_ingest_processing_duration_seconds",
			Help:    "Wall time spent processing one file",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	IngestBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_gallery_ingest_bytes_total",
			Help: "Bytes of source media ingested",
		},
		[]string{"kind"},
	)
)

// Renderer metrics
var (
	RenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "live_gallery_render_duration_seconds",
			Help:    "Variant rendering duration by backend and step",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"backend", "step"}, // decode, webp, thumbnail
	)

	RenderOutputBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_gallery_render_output_bytes_total",
			Help: "Bytes written for derived variants",
		},
		[]string{"variant"},
	)

	RenderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_gallery_render_errors_total",
			Help: "Rendering failures by backend",
		},
		[]string{"backend"},
	)

	ProbeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_gallery_video_probe_total",
			Help: "ffprobe invocations by status",
		},
		[]string{"status"}, // success, error, unavailable
	)
)

// Target resolver metrics
var (
	TargetPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_gallery_target_polls_total",
			Help: "Ingest target configuration polls by status",
		},
		[]string{"status"},
	)

	TargetFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_gallery_target_fallbacks_total",
			Help: "Times the configured target could not be used",
		},
		[]string{"resolution"}, // previous, existing, created, failed
	)

	TargetChangesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "live_gallery_target_changes_total",
			Help: "Times the live target folder changed",
		},
	)
)

// Fanout metrics
var (
	FanoutClients = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "live_gallery_fanout_clients",
			Help: "Connected fanout clients by hop",
		},
		[]string{"hop"}, // socket, stream
	)

	FanoutMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_gallery_fanout_messages_total",
			Help: "Fanout messages by hop and direction",
		},
		[]string{"hop", "direction"}, // in, out
	)

	FanoutDroppedSubscribers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_gallery_fanout_dropped_subscribers_total",
			Help: "Subscribers pruned after a failed or saturated write",
		},
		[]string{"hop"},
	)

	FanoutRejectedMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_gallery_fanout_rejected_messages_total",
			Help: "Inbound messages rejected by reason",
		},
		[]string{"reason"}, // malformed, unknown_type, unauthorized
	)

	FanoutForwardTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_gallery_fanout_forward_total",
			Help: "Hop 1 to hop 2 forwards by status",
		},
		[]string{"status"},
	)

	FanoutReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "live_gallery_fanout_reconnects_total",
			Help: "Socket client reconnect attempts",
		},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_gallery_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_gallery_memory_paused",
			Help: "1 while ingest is paused for memory pressure",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "live_gallery_memory_gc_pauses_total",
			Help: "Times ingest was paused and a GC forced for memory pressure",
		},
	)
)

// Library metrics
var (
	LibraryMediaFiles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "live_gallery_library_media_files",
			Help: "Stored media files by kind",
		},
		[]string{"kind"}, // image, video
	)

	LibraryFolders = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_gallery_library_folders",
			Help: "Stored folders",
		},
	)
)
