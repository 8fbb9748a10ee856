package memory

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testGate(limit int64) *Gate {
	g := NewGate(Config{
		LimitBytes:    limit,
		ResumeMark:    0.5,
		PauseMark:     0.8,
		CheckInterval: 10 * time.Millisecond,
	})
	return g
}

func TestGatePausesAndResumes(t *testing.T) {
	g := testGate(1000)
	alloc := uint64(900)
	g.sample = func() uint64 { return alloc }

	g.check()
	if !g.Paused() {
		t.Fatal("gate should close at 90% usage")
	}
	if u := g.Usage(); u < 0.89 || u > 0.91 {
		t.Errorf("Usage = %f, want 0.9", u)
	}

	waited := make(chan error, 1)
	go func() { waited <- g.Wait(context.Background()) }()

	select {
	case <-waited:
		t.Fatal("Wait returned while gate was closed")
	case <-time.After(20 * time.Millisecond):
	}

	// Between the marks the gate stays closed
	alloc = 600
	g.check()
	if !g.Paused() {
		t.Fatal("gate should stay closed above the resume mark")
	}

	alloc = 100
	g.check()
	if g.Paused() {
		t.Fatal("gate should reopen below the resume mark")
	}
	select {
	case err := <-waited:
		if err != nil {
			t.Errorf("Wait returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after resume")
	}
}

func TestGateWaitHonorsContext(t *testing.T) {
	g := testGate(1000)
	g.sample = func() uint64 { return 1000 }
	g.check()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := g.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait = %v, want deadline exceeded", err)
	}
}

func TestGateServeReopensOnShutdown(t *testing.T) {
	g := testGate(1000)
	g.sample = func() uint64 { return 1000 }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Serve(ctx) }()

	deadline := time.Now().Add(time.Second)
	for !g.Paused() {
		if time.Now().After(deadline) {
			t.Fatal("gate never closed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v, want context.Canceled", err)
	}
	if g.Paused() {
		t.Error("gate should be open after shutdown")
	}
}

func TestGateWithoutLimit(t *testing.T) {
	g := &Gate{resumeCh: make(chan struct{})}
	if g.Enabled() {
		t.Fatal("gate without limit should be disabled")
	}
	if err := g.Wait(context.Background()); err != nil {
		t.Errorf("Wait = %v", err)
	}
	if g.Usage() != 0 {
		t.Errorf("Usage = %f, want 0", g.Usage())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if c.ResumeMark >= c.PauseMark {
		t.Errorf("resume mark %.2f should be below pause mark %.2f", c.ResumeMark, c.PauseMark)
	}
	if c.CheckInterval <= 0 {
		t.Errorf("CheckInterval = %v", c.CheckInterval)
	}
}
