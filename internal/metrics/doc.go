// Package metrics provides Prometheus instrumentation for the live gallery
// processes.
//
// All metrics are prefixed with "live_gallery_" and registered on the default
// registry through promauto, so importing the package is enough to expose
// them on /metrics.
//
// # Metric Categories
//
//   - HTTP: request counts, durations and in-flight requests.
//   - Database: query counts and durations, transaction durations, rows written.
//   - Filesystem: ESTALE retries and file moves.
//   - Watcher: notifications, watched directories, stabilization latency.
//   - Ingest: queue depth, per-file state transitions, outcomes by kind.
//   - Renderer: step durations by backend, bytes written per variant, probe results.
//   - Target: configuration polls, fallbacks and target changes.
//   - Fanout: connected clients per hop, message flow, pruned subscribers,
//     forward results and reconnects.
//
// InitializeMetrics pre-creates the expected label combinations so that
// dashboards see zero values before the first event.
package metrics
