package middleware

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// Connection kinds written in the x-conn field.
const (
	connPlain  = "-"
	connStream = "sse"
	connSocket = "ws"
)

// LoggingConfig holds configuration for the logging middleware
type LoggingConfig struct {
	// ServiceName is written as the s-sitename field
	ServiceName string
	// SkipPrefixes are request paths that are never logged
	SkipPrefixes    []string
	LogHealthChecks bool
}

// DefaultLoggingConfig logs everything, health checks included.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		ServiceName:     "live-gallery",
		LogHealthChecks: true,
	}
}

// W3CLogger writes one W3C Extended Log Format line per request. Event
// streams and upgraded sockets are logged once, when they end, so the
// time-taken field is the connection lifetime.
type W3CLogger struct {
	config      LoggingConfig
	serviceName string
	printf      func(format string, args ...interface{})
}

// NewW3CLogger creates a new W3C format logger
func NewW3CLogger(config LoggingConfig) *W3CLogger {
	name := config.ServiceName
	if name == "" {
		name = "-"
	}
	return &W3CLogger{
		config:      config,
		serviceName: escapeW3CField(sanitizeLogField(name)),
		printf:      log.Printf,
	}
}

var healthCheckPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

// sanitizeLogField strips control characters so a header cannot forge log
// lines. Newlines become spaces; tabs are kept.
func sanitizeLogField(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r':
			b.WriteRune(' ')
		case r < 0x20 && r != '\t':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Logger returns HTTP logging middleware using W3C Extended Log Format.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	logger := NewW3CLogger(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkip(r.URL.Path, config) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := newResponseWriter(w)
			wrapped.onHijackedClose = func(written int64) {
				logger.logRequest(r, http.StatusSwitchingProtocols, written, time.Since(start), connSocket)
			}

			next.ServeHTTP(wrapped, r)

			if wrapped.hijacked {
				// logged when the socket closes
				return
			}
			logger.logRequest(r, wrapped.statusCode, wrapped.bytesWritten, time.Since(start), connKind(wrapped))
		})
	}
}

func connKind(rw *responseWriter) string {
	if strings.HasPrefix(rw.Header().Get("Content-Type"), "text/event-stream") {
		return connStream
	}
	return connPlain
}

// logRequest writes one line:
//
//	date time s-sitename c-ip cs-method cs-uri-stem cs-uri-query sc-status sc-bytes time-taken x-conn cs(User-Agent) cs(Referer)
func (l *W3CLogger) logRequest(r *http.Request, status int, bytesWritten int64, duration time.Duration, conn string) {
	now := time.Now().UTC()

	uriQuery := sanitizeLogField(r.URL.RawQuery)
	if uriQuery == "" {
		uriQuery = "-"
	}
	userAgent := sanitizeLogField(r.Header.Get("User-Agent"))
	if userAgent == "" {
		userAgent = "-"
	} else {
		userAgent = escapeW3CField(userAgent)
	}
	referer := sanitizeLogField(r.Header.Get("Referer"))
	if referer == "" {
		referer = "-"
	}

	logLine := fmt.Sprintf("%s %s %s %s %s %s %s %d %d %d %s %s %s",
		now.Format("2006-01-02"),
		now.Format("15:04:05"),
		l.serviceName,
		sanitizeLogField(getClientIP(r)),
		sanitizeLogField(r.Method),
		sanitizeLogField(r.URL.Path),
		uriQuery,
		status,
		bytesWritten,
		duration.Milliseconds(),
		conn,
		userAgent,
		referer,
	)

	//nolint:gosec // G706: every request-derived field passes through sanitizeLogField.
	l.printf("%s", logLine)
}

func shouldSkip(path string, config LoggingConfig) bool {
	for _, prefix := range config.SkipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return !config.LogHealthChecks && healthCheckPaths[path]
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// escapeW3CField quotes values containing whitespace or quotes.
func escapeW3CField(s string) string {
	if strings.ContainsAny(s, " \t\"") {
		s = strings.ReplaceAll(s, "\"", "\"\"")
		return "\"" + s + "\""
	}
	return s
}
