package handlers

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"live-gallery/internal/fanout"
	"live-gallery/internal/metrics"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const testSecret = "s3cret"

func setupTestHandlers(t *testing.T, secret string) *Handlers {
	t.Helper()
	imagesDir := filepath.Join(t.TempDir(), "images")
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		t.Fatal(err)
	}
	return New(fanout.NewBroker(8), secret, imagesDir)
}

func newFileBody(t *testing.T) string {
	t.Helper()
	data, err := fanout.Encode(fanout.NewFile{
		ID:          "m1",
		Hash:        "900150983cd24fb0d6963f7d28e17f72",
		FileName:    "IMG_0001.jpg",
		Kind:        "image",
		Width:       "32",
		Height:      "64",
		Size:        "1024",
		Orientation: "1",
		FolderID:    "F1",
		CreatedAt:   "2026-01-02T03:04:05Z",
		Variants: []fanout.VariantPayload{
			{Kind: "original", Path: "/images/F1/original/IMG_0001.jpg", Size: "1024"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func publish(h *Handlers, secret, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/internal/publish", strings.NewReader(body))
	if secret != "" {
		req.Header.Set(fanout.SecretHeader, secret)
	}
	w := httptest.NewRecorder()
	h.Publish(w, req)
	return w
}

// =============================================================================
// Publish Tests
// =============================================================================

func TestPublishAuthentication(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		sent       string
		wantStatus int
	}{
		{"valid secret", testSecret, testSecret, http.StatusOK},
		{"missing header", testSecret, "", http.StatusUnauthorized},
		{"wrong secret", testSecret, "guess", http.StatusUnauthorized},
		{"prefix of secret", testSecret, "s3c", http.StatusUnauthorized},
		{"no secret configured", "", "anything", http.StatusForbidden},
		{"no secret configured and none sent", "", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupTestHandlers(t, tt.configured)
			sub := h.broker.Subscribe()

			w := publish(h, tt.sent, newFileBody(t))
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}

			delivered := len(sub.C())
			if tt.wantStatus == http.StatusOK && delivered != 1 {
				t.Errorf("delivered %d frames, want 1", delivered)
			}
			if tt.wantStatus != http.StatusOK && delivered != 0 {
				t.Errorf("rejected publish delivered %d frames", delivered)
			}
		})
	}
}

func TestPublishRejectsInvalidEnvelopes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "hello"},
		{"unknown type", `{"type":"delete-file","payload":{}}`},
		{"missing type", `{"payload":{"id":"m1"}}`},
		{"integer size", `{"type":"new-file","payload":{"id":"m1","size":1024}}`},
		{"connected is not publishable", `{"type":"connected","payload":{"clientId":"c1"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupTestHandlers(t, testSecret)
			sub := h.broker.Subscribe()

			w := publish(h, testSecret, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if len(sub.C()) != 0 {
				t.Error("invalid envelope was broadcast")
			}
		})
	}
}

func TestPublishCompactsFrame(t *testing.T) {
	h := setupTestHandlers(t, testSecret)
	sub := h.broker.Subscribe()

	pretty := "{\n  \"type\": \"new-file\",\n  \"payload\": {\"id\": \"m1\", \"size\": \"5\"}\n}"
	if w := publish(h, testSecret, pretty); w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	frame := <-sub.C()
	if strings.Contains(string(frame), "\n") {
		t.Errorf("frame contains a newline: %q", frame)
	}
	if _, err := fanout.Decode(frame); err != nil {
		t.Errorf("compacted frame does not decode: %v", err)
	}
}

func TestPublishFansOutToEverySubscriber(t *testing.T) {
	h := setupTestHandlers(t, testSecret)
	const k = 3
	subs := make([]*fanout.Subscriber, k)
	for i := range subs {
		subs[i] = h.broker.Subscribe()
	}

	w := publish(h, testSecret, newFileBody(t))
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["delivered"] != "3" {
		t.Errorf("delivered = %q, want 3", resp["delivered"])
	}
	for i, s := range subs {
		if got := len(s.C()); got != 1 {
			t.Errorf("subscriber %d got %d frames, want 1", i, got)
		}
	}

	// A stream opened afterwards sees nothing
	late := h.broker.Subscribe()
	if len(late.C()) != 0 {
		t.Error("late subscriber received an earlier event")
	}
}

func TestPublishRecordsUnauthorized(t *testing.T) {
	h := setupTestHandlers(t, testSecret)
	counter := metrics.FanoutRejectedMessages.WithLabelValues("unauthorized")
	before := testutil.ToFloat64(counter)

	publish(h, "wrong", newFileBody(t))

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("unauthorized counter moved by %v, want 1", got)
	}
}

// =============================================================================
// Events Tests
// =============================================================================

type streamReader struct {
	t *testing.T
	r *bufio.Reader
}

// next returns the payload of the next data frame, skipping comments.
func (s *streamReader) next() string {
	s.t.Helper()
	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			s.t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		if strings.HasPrefix(line, "data: ") {
			return strings.TrimPrefix(line, "data: ")
		}
	}
}

func openStream(t *testing.T, srv *httptest.Server) (*http.Response, *streamReader) {
	t.Helper()
	resp, err := http.Get(srv.URL + "/api/events")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp, &streamReader{t: t, r: bufio.NewReader(resp.Body)}
}

func waitForStreams(t *testing.T, h *Handlers, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.broker.Count() != n {
		if time.Now().After(deadline) {
			t.Fatalf("have %d streams, want %d", h.broker.Count(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEventsStream(t *testing.T) {
	h := setupTestHandlers(t, testSecret)
	srv := httptest.NewServer(http.HandlerFunc(h.Events))
	// Cleanups run last-in first-out, so the stream body closes before the server.
	t.Cleanup(srv.Close)

	resp, stream := openStream(t, srv)
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q", cc)
	}

	msg, err := fanout.Decode([]byte(stream.next()))
	if err != nil {
		t.Fatalf("decode connected frame: %v", err)
	}
	hello, ok := msg.(fanout.Connected)
	if !ok || hello.ClientID == "" {
		t.Fatalf("first frame = %#v, want connected with client id", msg)
	}

	waitForStreams(t, h, 1)
	if w := publish(h, testSecret, newFileBody(t)); w.Code != http.StatusOK {
		t.Fatalf("publish status = %d", w.Code)
	}

	msg, err = fanout.Decode([]byte(stream.next()))
	if err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev, ok := msg.(fanout.NewFile); !ok || ev.ID != "m1" {
		t.Errorf("event = %#v", msg)
	}
}

func TestEventsHeartbeat(t *testing.T) {
	h := setupTestHandlers(t, testSecret)
	h.SetHeartbeat(20 * time.Millisecond)
	srv := httptest.NewServer(http.HandlerFunc(h.Events))
	// Cleanups run last-in first-out, so the stream body closes before the server.
	t.Cleanup(srv.Close)

	_, stream := openStream(t, srv)
	stream.next()

	line, err := stream.r.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if line != ": ping\n" {
		t.Errorf("heartbeat line = %q", line)
	}
}

func TestEventsDeregistersOnClose(t *testing.T) {
	h := setupTestHandlers(t, testSecret)
	srv := httptest.NewServer(http.HandlerFunc(h.Events))
	t.Cleanup(srv.Close)

	resp, stream := openStream(t, srv)
	stream.next()
	waitForStreams(t, h, 1)

	resp.Body.Close()
	// The handler notices the disconnect on its next write at the latest.
	deadline := time.Now().Add(2 * time.Second)
	for h.broker.Count() != 0 {
		h.broker.Publish([]byte(`{"type":"new-file"}`))
		if time.Now().After(deadline) {
			t.Fatalf("stream still registered after client closed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// =============================================================================
// Health Tests
// =============================================================================

func TestHealthCheck(t *testing.T) {
	h := setupTestHandlers(t, testSecret)
	h.broker.Subscribe()

	w := httptest.NewRecorder()
	h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != statusHealthy || !resp.Ready || resp.Streams != 1 {
		t.Errorf("response = %+v", resp)
	}
}

func TestReadinessCheck(t *testing.T) {
	h := setupTestHandlers(t, testSecret)

	w := httptest.NewRecorder()
	h.ReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
	if w.Code != http.StatusOK {
		t.Errorf("ready status = %d", w.Code)
	}

	if err := os.RemoveAll(h.imagesDir); err != nil {
		t.Fatal(err)
	}
	w = httptest.NewRecorder()
	h.ReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("missing images dir status = %d, want 503", w.Code)
	}
}

func TestLivenessCheckHead(t *testing.T) {
	w := httptest.NewRecorder()
	LivenessCheck(w, httptest.NewRequest(http.MethodHead, "/livez", http.NoBody))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("HEAD response has a body: %q", w.Body.String())
	}
}

func TestGetVersion(t *testing.T) {
	w := httptest.NewRecorder()
	GetVersion(w, httptest.NewRequest(http.MethodGet, "/version", http.NoBody))

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var info map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info["version"] == "" {
		t.Errorf("version missing from %v", info)
	}
}

type fixedCounter int

func (c fixedCounter) ClientCount() int { return int(c) }

func TestBridgeHealth(t *testing.T) {
	w := httptest.NewRecorder()
	BridgeHealth(fixedCounter(4))(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	var resp BridgeHealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Clients != 4 || resp.Status != statusHealthy {
		t.Errorf("response = %+v", resp)
	}
}

func TestWatcherHealth(t *testing.T) {
	tests := []struct {
		name       string
		status     IngestStatus
		wantCode   int
		wantStatus string
	}{
		{"no target yet", IngestStatus{}, http.StatusServiceUnavailable, statusStarting},
		{"healthy", IngestStatus{Target: "F1", BridgeConnected: true}, http.StatusOK, statusHealthy},
		{"bridge down", IngestStatus{Target: "F1"}, http.StatusOK, statusDegraded},
		{"memory paused", IngestStatus{Target: "F1", BridgeConnected: true, MemoryPaused: true}, http.StatusOK, statusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := WatcherHealth(func() IngestStatus { return tt.status })
			w := httptest.NewRecorder()
			handler(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

			if w.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", w.Code, tt.wantCode)
			}
			var resp WatcherHealthResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
		})
	}
}
