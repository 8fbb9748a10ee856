// Package main provides the entry point for the Live Gallery server.
//
// The gallery serves rendered media from $PUBLIC_DIR/images and pushes newly
// ingested files to browsers as they arrive.
//
// # Live Updates
//
// Browsers open GET /api/events, a Server-Sent Events stream. The first
// frame carries the stream's client id:
//
//	data: {"type":"connected","payload":{"clientId":"..."}}
//
// Each file ingested by the watcher then arrives once as a new-file frame.
// A comment line is sent every 25 seconds so idle proxies keep the stream
// open. A stream that cannot keep up is closed; browsers reconnect on their
// own.
//
// The bridge delivers events through POST /internal/publish, authenticated
// with the X-Internal-Secret header. With no INTERNAL_SECRET configured the
// endpoint refuses every request.
//
// # Application Lifecycle
//
//  1. Configuration Loading: Reads environment variables and checks directories
//  2. HTTP Server Setup: Routes, W3C access logging, Prometheus middleware
//  3. Supervision: The server runs under a suture supervisor tree
//  4. Graceful Shutdown: SIGINT/SIGTERM end open streams and stop the server
//
// See cmd/watcher and cmd/bridge for the other two processes.
package main
