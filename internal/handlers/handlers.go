package handlers

import (
	"sync/atomic"
	"time"

	"live-gallery/internal/fanout"
	"live-gallery/internal/logging"
)

// DefaultHeartbeat is how often an idle event stream receives a ping comment.
const DefaultHeartbeat = 25 * time.Second

// Handlers serves the gallery's HTTP API: the event stream, the internal
// publish endpoint and the health probes.
type Handlers struct {
	broker    *fanout.Broker
	secret    string
	imagesDir string
	heartbeat time.Duration
	started   time.Time
	published atomic.Int64
	log       *logging.Logger
}

// New returns gallery handlers. An empty secret makes the publish endpoint
// refuse every request.
func New(broker *fanout.Broker, secret, imagesDir string) *Handlers {
	return &Handlers{
		broker:    broker,
		secret:    secret,
		imagesDir: imagesDir,
		heartbeat: DefaultHeartbeat,
		started:   time.Now(),
		log:       logging.Component("gallery"),
	}
}

// SetHeartbeat changes the ping interval for streams opened afterwards.
func (h *Handlers) SetHeartbeat(d time.Duration) {
	if d > 0 {
		h.heartbeat = d
	}
}
