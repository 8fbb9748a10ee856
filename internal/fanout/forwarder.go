package fanout

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"live-gallery/internal/metrics"
)

// SecretHeader carries the shared secret on internal publish requests.
const SecretHeader = "X-Internal-Secret"

// HTTPForwarder posts frames to the gallery's internal publish endpoint.
type HTTPForwarder struct {
	url    string
	secret string
	client *http.Client
}

// NewHTTPForwarder returns a forwarder for url authenticated with secret.
func NewHTTPForwarder(url, secret string, timeout time.Duration) *HTTPForwarder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPForwarder{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: timeout},
	}
}

// Forward implements Forwarder.
func (f *HTTPForwarder) Forward(ctx context.Context, frame []byte) error {
	err := f.post(ctx, frame)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.FanoutForwardTotal.WithLabelValues(status).Inc()
	return err
}

func (f *HTTPForwarder) post(ctx context.Context, frame []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(frame))
	if err != nil {
		return fmt.Errorf("build publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SecretHeader, f.secret)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("publish request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("publish endpoint returned %s", resp.Status)
	}
	return nil
}
