package ingest

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"live-gallery/internal/logging"
	"live-gallery/internal/metrics"
)

// State is the lifecycle position of one path.
type State string

const (
	StateDetected   State = "detected"
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Handler processes one ready file.
type Handler interface {
	Process(ctx context.Context, path string) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, path string) error

// Process implements Handler.
func (f HandlerFunc) Process(ctx context.Context, path string) error { return f(ctx, path) }

// Gate delays the next file, e.g. while memory is under pressure.
type Gate interface {
	Wait(ctx context.Context) error
}

// Stats is a snapshot of dispatcher activity.
type Stats struct {
	Queued     int
	Processing string
	Done       int64
	Failed     int64
	LastDone   time.Time
}

// Dispatcher feeds ready files to a Handler strictly one at a time, in the
// order they were enqueued.
type Dispatcher struct {
	queue   *Queue
	handler Handler
	gate    Gate
	log     *logging.Logger

	mu       sync.Mutex
	states   map[string]State
	current  string
	done     int64
	failed   int64
	lastDone time.Time

	// OnStateChange, if set, is called on every transition. It runs on the
	// goroutine making the transition and must not block.
	OnStateChange func(path string, state State)
}

// NewDispatcher returns a dispatcher for handler.
func NewDispatcher(handler Handler) *Dispatcher {
	return &Dispatcher{
		queue:   NewQueue(),
		handler: handler,
		states:  make(map[string]State),
		log:     logging.Component("dispatcher"),
	}
}

// SetGate installs a gate consulted before each file. Call before Serve.
func (d *Dispatcher) SetGate(g Gate) {
	d.gate = g
}

// transition records state for path. Terminal states drop the path so the
// same name can be ingested again later.
func (d *Dispatcher) transition(path string, state State) {
	d.mu.Lock()
	switch state {
	case StateDone, StateFailed:
		delete(d.states, path)
	default:
		d.states[path] = state
	}
	d.mu.Unlock()

	metrics.IngestStateTransitions.WithLabelValues(string(state)).Inc()
	if d.OnStateChange != nil {
		d.OnStateChange(path, state)
	}
}

// Enqueue queues path. It returns false when path is already detected,
// queued or being processed.
func (d *Dispatcher) Enqueue(path string) bool {
	d.mu.Lock()
	if st, ok := d.states[path]; ok {
		d.mu.Unlock()
		d.log.Debug("%s already %s, not queueing again", path, st)
		return false
	}
	// claimed under the lock; a concurrent Enqueue for path now returns false
	d.states[path] = StateDetected
	d.mu.Unlock()

	d.transition(path, StateDetected)
	d.transition(path, StateQueued)
	d.queue.Push(path)
	return true
}

// State returns the current state of path, if it is known.
func (d *Dispatcher) State(path string) (State, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.states[path]
	return st, ok
}

// Stats returns a snapshot of dispatcher activity.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		Queued:     d.queue.Len(),
		Processing: d.current,
		Done:       d.done,
		Failed:     d.failed,
		LastDone:   d.lastDone,
	}
}

// Serve is the single consumer. It returns when ctx is done; a file that
// is already processing runs to completion first.
func (d *Dispatcher) Serve(ctx context.Context) error {
	d.log.Info("dispatcher started")
	for {
		path, err := d.queue.Pop(ctx)
		if err != nil {
			d.log.Info("dispatcher stopped with %d file(s) queued", d.queue.Len())
			return err
		}

		if d.gate != nil {
			if err := d.gate.Wait(ctx); err != nil {
				d.queue.pushFront(path)
				d.log.Info("dispatcher stopped while gated with %d file(s) queued", d.queue.Len())
				return err
			}
		}

		d.run(context.WithoutCancel(ctx), path)
	}
}

// String implements fmt.Stringer for supervisor logging.
func (d *Dispatcher) String() string { return "ingest-dispatcher" }

func (d *Dispatcher) run(ctx context.Context, path string) {
	d.mu.Lock()
	d.current = path
	d.mu.Unlock()
	d.transition(path, StateProcessing)

	err := d.safeProcess(ctx, path)

	d.mu.Lock()
	d.current = ""
	if err != nil {
		d.failed++
	} else {
		d.done++
		d.lastDone = time.Now()
	}
	d.mu.Unlock()

	if err != nil {
		d.log.Error("%s failed: %v", path, err)
		d.transition(path, StateFailed)
		return
	}
	d.transition(path, StateDone)
}

func (d *Dispatcher) safeProcess(ctx context.Context, path string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Debug("panic stack: %s", debug.Stack())
			err = fmt.Errorf("panic while processing: %v", r)
		}
	}()
	return d.handler.Process(ctx, path)
}
