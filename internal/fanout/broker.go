package fanout

import (
	"sync"

	"live-gallery/internal/logging"
	"live-gallery/internal/metrics"

	"github.com/google/uuid"
)

// Subscriber is one open stream registered with a Broker.
type Subscriber struct {
	id string
	ch chan []byte
}

// ID returns the subscriber's client id.
func (s *Subscriber) ID() string { return s.id }

// C delivers published frames. It is closed when the subscriber is removed.
func (s *Subscriber) C() <-chan []byte { return s.ch }

// Broker is the process-wide set of open event streams.
type Broker struct {
	mu     sync.Mutex
	subs   map[string]*Subscriber
	buffer int
	log    *logging.Logger
}

// NewBroker creates a broker whose subscribers each buffer up to buffer frames.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broker{
		subs:   make(map[string]*Subscriber),
		buffer: buffer,
		log:    logging.Component("events"),
	}
}

// Subscribe registers a new stream.
func (b *Broker) Subscribe() *Subscriber {
	s := &Subscriber{id: uuid.NewString(), ch: make(chan []byte, b.buffer)}

	b.mu.Lock()
	b.subs[s.id] = s
	n := len(b.subs)
	b.mu.Unlock()

	metrics.FanoutClients.WithLabelValues("stream").Set(float64(n))
	b.log.Debug("stream %s opened (%d total)", s.id, n)
	return s
}

// Unsubscribe removes s. Removing a subscriber twice is a no-op.
func (b *Broker) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	removed := b.removeLocked(s)
	n := len(b.subs)
	b.mu.Unlock()

	if removed {
		metrics.FanoutClients.WithLabelValues("stream").Set(float64(n))
		b.log.Debug("stream %s closed (%d total)", s.id, n)
	}
}

func (b *Broker) removeLocked(s *Subscriber) bool {
	if _, ok := b.subs[s.id]; !ok {
		return false
	}
	delete(b.subs, s.id)
	close(s.ch)
	return true
}

// Publish hands frame to every open stream without blocking and returns
// how many accepted it. A stream whose buffer is full is dropped.
func (b *Broker) Publish(frame []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	delivered := 0
	for _, s := range b.subs {
		select {
		case s.ch <- frame:
			delivered++
		default:
			b.log.Warn("stream %s is not keeping up, dropping it", s.id)
			metrics.FanoutDroppedSubscribers.WithLabelValues("stream").Inc()
			b.removeLocked(s)
		}
	}
	metrics.FanoutMessagesTotal.WithLabelValues("stream", "out").Add(float64(delivered))
	metrics.FanoutClients.WithLabelValues("stream").Set(float64(len(b.subs)))
	return delivered
}

// Count returns the number of open streams.
func (b *Broker) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// CloseAll removes every subscriber, ending their streams.
func (b *Broker) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		b.removeLocked(s)
	}
	metrics.FanoutClients.WithLabelValues("stream").Set(0)
}
