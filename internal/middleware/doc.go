// Package middleware provides HTTP middleware shared by the gallery and
// bridge servers.
//
// It includes:
//   - Request logging in W3C Extended Log Format. Event streams and upgraded
//     sockets are logged when they end, tagged sse or ws, with their lifetime
//   - Prometheus request metrics with bounded path cardinality
//
// Both wrap the ResponseWriter in a way that still supports flushing and
// hijacking, so server-sent event streams and WebSocket upgrades pass
// through unchanged.
package middleware
