package ingest

import (
	"context"
	"sync"

	"live-gallery/internal/metrics"
)

// Queue is an unbounded FIFO of file paths. Any number of goroutines may
// Push; Pop is meant for a single consumer.
type Queue struct {
	mu     sync.Mutex
	items  []string
	signal chan struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Push appends path to the tail of the queue.
func (q *Queue) Push(path string) {
	q.mu.Lock()
	q.items = append(q.items, path)
	n := len(q.items)
	q.mu.Unlock()

	metrics.IngestQueueDepth.Set(float64(n))

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// pushFront returns path to the head of the queue, undoing a Pop whose
// item could not be handed to the consumer.
func (q *Queue) pushFront(path string) {
	q.mu.Lock()
	q.items = append([]string{path}, q.items...)
	n := len(q.items)
	q.mu.Unlock()

	metrics.IngestQueueDepth.Set(float64(n))

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Pop removes and returns the head of the queue, blocking until an item is
// available or ctx is done. Nothing is removed once ctx is done.
func (q *Queue) Pop(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		q.mu.Lock()
		if len(q.items) > 0 {
			path := q.items[0]
			q.items[0] = ""
			q.items = q.items[1:]
			n := len(q.items)
			q.mu.Unlock()

			metrics.IngestQueueDepth.Set(float64(n))
			return path, nil
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Len returns the number of queued paths.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
