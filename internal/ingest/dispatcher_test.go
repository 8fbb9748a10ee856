package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type span struct {
	path       string
	start, end time.Time
}

type recordingHandler struct {
	mu     sync.Mutex
	spans  []span
	delay  time.Duration
	fail   map[string]error
	panics map[string]bool
}

func (h *recordingHandler) Process(_ context.Context, path string) error {
	start := time.Now()
	time.Sleep(h.delay)
	h.mu.Lock()
	h.spans = append(h.spans, span{path: path, start: start, end: time.Now()})
	h.mu.Unlock()

	if h.panics[path] {
		panic("boom")
	}
	return h.fail[path]
}

func (h *recordingHandler) processed() []span {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]span(nil), h.spans...)
}

func startDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDispatcherSerializesInOrder(t *testing.T) {
	h := &recordingHandler{delay: 10 * time.Millisecond}
	d := NewDispatcher(h)

	const n = 8
	for i := 0; i < n; i++ {
		d.Enqueue(fmt.Sprintf("file-%d", i))
	}
	startDispatcher(t, d)
	waitFor(t, func() bool { return len(h.processed()) == n })

	spans := h.processed()
	for i, s := range spans {
		if want := fmt.Sprintf("file-%d", i); s.path != want {
			t.Errorf("position %d processed %s, want %s", i, s.path, want)
		}
		if i > 0 && s.start.Before(spans[i-1].end) {
			t.Errorf("%s started before %s finished", s.path, spans[i-1].path)
		}
	}

	stats := d.Stats()
	if stats.Done != n || stats.Failed != 0 || stats.Queued != 0 {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestDispatcherDeduplicatesQueuedPaths(t *testing.T) {
	h := &recordingHandler{}
	d := NewDispatcher(h)

	if !d.Enqueue("a") {
		t.Fatal("first Enqueue should succeed")
	}
	if d.Enqueue("a") {
		t.Error("second Enqueue of a queued path should be refused")
	}
	if st, ok := d.State("a"); !ok || st != StateQueued {
		t.Errorf("State(a) = %v, %v", st, ok)
	}

	startDispatcher(t, d)
	waitFor(t, func() bool { return d.Stats().Done == 1 })

	if _, ok := d.State("a"); ok {
		t.Error("finished path should be forgotten")
	}
	if !d.Enqueue("a") {
		t.Error("a finished path may be queued again")
	}
	waitFor(t, func() bool { return d.Stats().Done == 2 })
}

func TestDispatcherContinuesAfterFailureAndPanic(t *testing.T) {
	h := &recordingHandler{
		fail:   map[string]error{"bad": errors.New("unreadable")},
		panics: map[string]bool{"explodes": true},
	}
	d := NewDispatcher(h)

	var mu sync.Mutex
	final := map[string]State{}
	d.OnStateChange = func(path string, state State) {
		if state == StateDone || state == StateFailed {
			mu.Lock()
			final[path] = state
			mu.Unlock()
		}
	}

	for _, p := range []string{"bad", "explodes", "good"} {
		d.Enqueue(p)
	}
	startDispatcher(t, d)
	waitFor(t, func() bool {
		s := d.Stats()
		return s.Done+s.Failed == 3
	})

	mu.Lock()
	defer mu.Unlock()
	want := map[string]State{"bad": StateFailed, "explodes": StateFailed, "good": StateDone}
	for p, st := range want {
		if final[p] != st {
			t.Errorf("%s ended %q, want %q", p, final[p], st)
		}
	}
}

func TestDispatcherStateSequence(t *testing.T) {
	d := NewDispatcher(HandlerFunc(func(context.Context, string) error { return nil }))

	var mu sync.Mutex
	var seen []State
	d.OnStateChange = func(_ string, state State) {
		mu.Lock()
		seen = append(seen, state)
		mu.Unlock()
	}

	d.Enqueue("x")
	startDispatcher(t, d)
	waitFor(t, func() bool { return d.Stats().Done == 1 })

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateDetected, StateQueued, StateProcessing, StateDone}
	if fmt.Sprint(seen) != fmt.Sprint(want) {
		t.Errorf("transitions = %v, want %v", seen, want)
	}
}

func TestDispatcherFinishesCurrentFileOnShutdown(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var sawCancel bool
	h := HandlerFunc(func(ctx context.Context, _ string) error {
		close(started)
		<-release
		sawCancel = ctx.Err() != nil
		return nil
	})
	d := NewDispatcher(h)
	d.Enqueue("slow")
	d.Enqueue("never")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Serve(ctx) }()

	<-started
	cancel()
	close(release)

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v, want context.Canceled", err)
	}
	if sawCancel {
		t.Error("processing context should not be canceled by shutdown")
	}
	if s := d.Stats(); s.Done != 1 || s.Queued != 1 {
		t.Errorf("Stats = %+v, want 1 done and 1 still queued", s)
	}
}

type closedGate struct{ waits int }

func (g *closedGate) Wait(ctx context.Context) error {
	g.waits++
	<-ctx.Done()
	return ctx.Err()
}

func TestDispatcherWaitsOnGate(t *testing.T) {
	h := &recordingHandler{}
	d := NewDispatcher(h)
	g := &closedGate{}
	d.SetGate(g)
	d.Enqueue("held")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := d.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve = %v", err)
	}
	if len(h.processed()) != 0 {
		t.Error("nothing should be processed while the gate is closed")
	}
	if g.waits != 1 {
		t.Errorf("gate consulted %d times, want 1", g.waits)
	}
}

func TestDispatcherKeepsPathQueuedWhenGateFails(t *testing.T) {
	h := &recordingHandler{}
	d := NewDispatcher(h)
	d.SetGate(&closedGate{})
	d.Enqueue("first")
	d.Enqueue("second")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := d.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Serve = %v", err)
	}

	if n := d.queue.Len(); n != 2 {
		t.Fatalf("queue length = %d, want 2", n)
	}
	if st, ok := d.State("first"); !ok || st != StateQueued {
		t.Errorf("first state = %q, %v; want queued", st, ok)
	}

	// The requeued path is still at the head.
	path, err := d.queue.Pop(context.Background())
	if err != nil || path != "first" {
		t.Errorf("Pop = %q, %v; want first", path, err)
	}
}

func TestDispatcherRejectsEnqueueWhileDetected(t *testing.T) {
	d := NewDispatcher(&recordingHandler{})
	var reentered []bool
	d.OnStateChange = func(path string, state State) {
		if state == StateDetected {
			reentered = append(reentered, d.Enqueue(path))
		}
	}

	if !d.Enqueue("a.jpg") {
		t.Fatal("first Enqueue should succeed")
	}
	if len(reentered) != 1 || reentered[0] {
		t.Errorf("Enqueue during detected = %v, want [false]", reentered)
	}
	if n := d.queue.Len(); n != 1 {
		t.Errorf("queue length = %d, want 1", n)
	}
}

func TestDispatcherConcurrentEnqueueQueuesOnce(t *testing.T) {
	d := NewDispatcher(&recordingHandler{})

	var wg sync.WaitGroup
	var accepted atomic.Int32
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.Enqueue("same.jpg") {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	if n := accepted.Load(); n != 1 {
		t.Errorf("accepted %d times, want 1", n)
	}
	if n := d.queue.Len(); n != 1 {
		t.Errorf("queue length = %d, want 1", n)
	}
}
