// Package handlers provides the HTTP handlers of the gallery server and the
// health endpoints of the bridge and watcher processes.
//
// Gallery endpoints:
//   - GET /api/events: Server-Sent Events stream of newly ingested media
//   - POST /internal/publish: re-publish endpoint used by the bridge,
//     authenticated with the X-Internal-Secret header
//   - GET /health, /livez, /readyz, /version
//
// The bridge and watcher expose [BridgeHealth] and [WatcherHealth] next to
// their /metrics endpoints.
package handlers
