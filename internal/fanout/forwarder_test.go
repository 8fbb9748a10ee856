package fanout

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPForwarder(t *testing.T) {
	var gotSecret, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get(SecretHeader)
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	f := NewHTTPForwarder(srv.URL, "s3cret", time.Second)
	if err := f.Forward(context.Background(), []byte(`{"type":"new-file"}`)); err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if gotSecret != "s3cret" {
		t.Errorf("secret header = %q", gotSecret)
	}
	if gotType != "application/json" {
		t.Errorf("content type = %q", gotType)
	}
	if gotBody != `{"type":"new-file"}` {
		t.Errorf("body = %q", gotBody)
	}
}

func TestHTTPForwarderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	f := NewHTTPForwarder(srv.URL, "wrong", time.Second)
	if err := f.Forward(context.Background(), []byte(`{}`)); err == nil {
		t.Error("expected error for 401 response")
	}

	unreachable := NewHTTPForwarder("http://127.0.0.1:1/internal/publish", "", 200*time.Millisecond)
	if err := unreachable.Forward(context.Background(), []byte(`{}`)); err == nil {
		t.Error("expected error for unreachable endpoint")
	}
}
