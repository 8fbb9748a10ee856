package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"live-gallery/internal/handlers"
	"live-gallery/internal/media"
	"live-gallery/internal/startup"
)

func TestNewRendererFallsBackToImaging(t *testing.T) {
	r := newRenderer(&startup.WatcherConfig{
		Renderer:         "imaging",
		WebPQuality:      80,
		ThumbnailQuality: 80,
		ThumbnailSize:    300,
	})
	if r.Name() != media.BackendImaging {
		t.Errorf("renderer = %s, want %s", r.Name(), media.BackendImaging)
	}

	r = newRenderer(&startup.WatcherConfig{Renderer: "gpu"})
	if r.Name() != media.BackendImaging {
		t.Errorf("unknown backend should fall back to %s, got %s", media.BackendImaging, r.Name())
	}
}

func TestRouter(t *testing.T) {
	status := func() handlers.IngestStatus {
		return handlers.IngestStatus{Target: "F1", BridgeConnected: true}
	}

	tests := []struct {
		name    string
		metrics bool
		path    string
		want    int
	}{
		{"health", true, "/health", http.StatusOK},
		{"version", true, "/version", http.StatusOK},
		{"metrics enabled", true, "/metrics", http.StatusOK},
		{"metrics disabled", false, "/metrics", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			setupRouter(status, tt.metrics).ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))
			if w.Code != tt.want {
				t.Errorf("GET %s = %d, want %d", tt.path, w.Code, tt.want)
			}
		})
	}
}
