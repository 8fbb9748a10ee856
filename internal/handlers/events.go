package handlers

import (
	"errors"
	"net/http"
	"time"

	"live-gallery/internal/fanout"
	"live-gallery/internal/metrics"
	"live-gallery/internal/streaming"
)

// Events streams published media events as Server-Sent Events. The first
// frame is a connected message carrying the stream's client id; after that
// every published event is written once as a single data frame.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		writeJSONError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := h.broker.Subscribe()
	defer h.broker.Unsubscribe(sub)

	hello, err := fanout.Encode(fanout.Connected{ClientID: sub.ID()})
	if err != nil {
		h.log.Error("encode connected frame: %v", err)
		return
	}

	w.WriteHeader(http.StatusOK)
	ew := streaming.NewEventWriter(r.Context(), w, streaming.DefaultWriteTimeout)
	defer func() {
		frames, written, duration := ew.Stats()
		h.log.Debug("stream %s ended after %v (%d frames, %d bytes)",
			sub.ID(), duration.Round(time.Second), frames, written)
	}()

	if err := ew.Data(hello); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case frame, ok := <-sub.C():
			if !ok {
				// Dropped by the broker or shut down.
				return
			}
			if err := ew.Data(frame); err != nil {
				if !errors.Is(err, streaming.ErrClientGone) {
					metrics.FanoutDroppedSubscribers.WithLabelValues("stream").Inc()
				}
				h.log.Debug("stream %s write failed: %v", sub.ID(), err)
				return
			}

		case <-ticker.C:
			if err := ew.Comment("ping"); err != nil {
				return
			}
		}
	}
}
