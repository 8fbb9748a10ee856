// Package startup handles process initialization, configuration loading,
// and startup/shutdown logging for the gallery, bridge and watcher binaries.
//
// # Configuration
//
// All configuration is read from environment variables by [LoadWatcherConfig],
// [LoadBridgeConfig] and [LoadGalleryConfig]. Invalid values are logged and
// replaced by their defaults. Shared variables:
//
//   - PUBLIC_DIR: Root of the public tree, holding ingest/ and images/ (default: ./public)
//   - INTERNAL_SECRET: Shared secret for POST /internal/publish (default: empty, refuse all)
//   - METRICS_ENABLED: Enable or disable metrics (default: true)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//
// Watcher:
//
//   - DATABASE_DIR: Directory holding gallery.db (default: ./data)
//   - TARGET_CONFIG: Ingest target JSON (default: $DATABASE_DIR/ingest-target.json)
//   - QUARANTINE_DIR: Where failed files are moved (default: $DATABASE_DIR/quarantine)
//   - TARGET_POLL_INTERVAL, QUIET_PERIOD, STABILITY_POLL: Go durations (5s, 1.5s, 100ms)
//   - HIDDEN_QUIET_PERIOD: idle time before an abandoned dot-file is removed (default: 10m)
//   - BRIDGE_URL: Socket bridge URL (default: ws://localhost:8081/ws)
//   - RECONNECT_DELAY: Fixed socket reconnect delay (default: 5s)
//   - RENDERER: vips or imaging (default: vips)
//   - WEBP_QUALITY (75-85), THUMBNAIL_QUALITY, THUMBNAIL_SIZE: 80, 80, 300
//   - MEMORY_LIMIT: container memory; GOMEMLIMIT is set to it minus RENDER_RESERVE
//   - RENDER_RESERVE: native libvips/libwebp memory (default: 64MiB + 96MiB per render thread)
//   - RENDER_THREADS: render thread count (default: from CPUs, at most 4)
//   - METRICS_PORT: default 9091
//
// Bridge:
//
//   - BRIDGE_PORT: Socket server port (default: 8081)
//   - PUBLISH_URL: Gallery publish endpoint (default: http://localhost:8080/internal/publish)
//   - PUBLISH_TIMEOUT: Forward request timeout (default: 5s)
//   - LOG_HEALTH_CHECKS: log health probes (default: true)
//   - METRICS_PORT: default 9092
//
// Gallery:
//
//   - PORT: HTTP server port, also serving /metrics (default: 8080)
//   - LOG_STATIC_FILES: log requests under /images/ (default: false)
//   - LOG_HEALTH_CHECKS: log health probes (default: true)
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
//   - [LogDatabaseInit]: Database path and initialization timing
//   - [LogMemoryConfig]: Memory limit configuration
//   - [LogRendererInit]: Renderer backend, libvips and ffprobe availability
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: Graceful shutdown
package startup
