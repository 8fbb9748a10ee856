package handlers

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"live-gallery/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the gallery health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Ready     bool   `json:"ready"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Streams   int    `json:"streams"`
	Published int64  `json:"published"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the gallery
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	ready := h.imagesReady()
	response := HealthResponse{
		Status:       statusHealthy,
		Ready:        ready,
		Version:      startup.Version,
		Uptime:       uptime(h.started),
		Streams:      h.broker.Count(),
		Published:    h.published.Load(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}
	if !ready {
		response.Status = statusDegraded
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 once the images directory can be served
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.imagesReady() {
		writeJSONStatus(w, "ready", http.StatusOK)
		return
	}
	writeJSONStatus(w, "not_ready", http.StatusServiceUnavailable)
}

func (h *Handlers) imagesReady() bool {
	info, err := os.Stat(h.imagesDir)
	return err == nil && info.IsDir()
}

// ClientCounter reports connected sockets.
type ClientCounter interface {
	ClientCount() int
}

// BridgeHealthResponse is the bridge's health check response.
type BridgeHealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	Clients int    `json:"clients"`
}

// BridgeHealth returns a health handler reporting the hub's socket count.
func BridgeHealth(hub ClientCounter) http.HandlerFunc {
	started := time.Now()
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		writeJSON(w, BridgeHealthResponse{
			Status:  statusHealthy,
			Version: startup.Version,
			Uptime:  uptime(started),
			Clients: hub.ClientCount(),
		})
	}
}

// IngestStatus is a snapshot of the watcher process.
type IngestStatus struct {
	Target             string    `json:"target"`
	Queued             int       `json:"queued"`
	Processing         string    `json:"processing,omitempty"`
	Done               int64     `json:"done"`
	Failed             int64     `json:"failed"`
	LastDone           time.Time `json:"lastDone,omitempty"`
	WatchedDirectories int       `json:"watchedDirectories"`
	Settling           int       `json:"settling"`
	BridgeConnected    bool      `json:"bridgeConnected"`
	MemoryPaused       bool      `json:"memoryPaused"`
}

// WatcherHealthResponse is the watcher's health check response.
type WatcherHealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	IngestStatus
}

// WatcherHealth returns a health handler for the watcher process. It
// answers 503 until the first ingest target is resolved and reports
// degraded while the bridge connection is down or ingest is paused.
func WatcherHealth(status func() IngestStatus) http.HandlerFunc {
	started := time.Now()
	return func(w http.ResponseWriter, _ *http.Request) {
		s := status()
		response := WatcherHealthResponse{
			Status:       statusHealthy,
			Version:      startup.Version,
			Uptime:       uptime(started),
			IngestStatus: s,
		}
		code := http.StatusOK
		switch {
		case s.Target == "":
			response.Status = statusStarting
			code = http.StatusServiceUnavailable
		case !s.BridgeConnected || s.MemoryPaused:
			response.Status = statusDegraded
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		writeJSON(w, response)
	}
}
