package handlers

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strconv"

	"live-gallery/internal/fanout"
	"live-gallery/internal/metrics"

	"github.com/goccy/go-json"
)

const maxPublishBytes = 1 << 20

// Publish accepts a new-file envelope from the bridge and writes it to every
// open event stream. The request must carry the shared secret in the
// X-Internal-Secret header.
func (h *Handlers) Publish(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" {
		metrics.FanoutRejectedMessages.WithLabelValues("unauthorized").Inc()
		writeJSONError(w, "publishing is disabled", http.StatusForbidden)
		return
	}
	got := r.Header.Get(fanout.SecretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		metrics.FanoutRejectedMessages.WithLabelValues("unauthorized").Inc()
		h.log.Warn("rejected publish from %s: bad secret", r.RemoteAddr)
		writeJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPublishBytes+1))
	if err != nil {
		writeJSONError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if len(body) > maxPublishBytes {
		metrics.FanoutRejectedMessages.WithLabelValues("malformed").Inc()
		writeJSONError(w, "body too large", http.StatusRequestEntityTooLarge)
		return
	}

	msg, err := fanout.Decode(body)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, fanout.ErrUnknownType) {
			reason = "unknown_type"
		}
		metrics.FanoutRejectedMessages.WithLabelValues(reason).Inc()
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if msg.Type() != fanout.TypeNewFile {
		metrics.FanoutRejectedMessages.WithLabelValues("unknown_type").Inc()
		writeJSONError(w, "only "+fanout.TypeNewFile+" can be published", http.StatusBadRequest)
		return
	}

	// A data frame must fit on one line.
	var frame bytes.Buffer
	if err := json.Compact(&frame, body); err != nil {
		metrics.FanoutRejectedMessages.WithLabelValues("malformed").Inc()
		writeJSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	metrics.FanoutMessagesTotal.WithLabelValues("stream", "in").Inc()
	delivered := h.broker.Publish(frame.Bytes())
	h.published.Add(1)
	h.log.Debug("published %s to %d streams", msg.(fanout.NewFile).ID, delivered)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	writeJSON(w, map[string]string{
		"status":    "ok",
		"delivered": strconv.Itoa(delivered),
	})
}
