// Command bridge runs the socket fanout server.
//
// Producers (the watcher) and viewers connect to /ws. Every new-file message
// a socket sends is forwarded to the gallery's POST /internal/publish with the
// shared X-Internal-Secret header and rebroadcast to every other socket.
// Messages of any other type are rejected and logged.
//
// Configuration is read from the environment, see package startup:
//
//	BRIDGE_PORT=8081 PUBLISH_URL=http://gallery:8080/internal/publish \
//	INTERNAL_SECRET=changeme bridge
//
// Metrics are served on METRICS_PORT (default 9092).
package main
