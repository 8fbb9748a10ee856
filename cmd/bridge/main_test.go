package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"live-gallery/internal/fanout"
	"live-gallery/internal/handlers"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

func TestRouterUpgradesSocket(t *testing.T) {
	hub := fanout.NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Serve(ctx)
		close(done)
	}()
	srv := httptest.NewServer(setupRouter(hub))
	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("socket never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var health handlers.BridgeHealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Clients != 1 {
		t.Errorf("health reports %d clients, want 1", health.Clients)
	}
}
