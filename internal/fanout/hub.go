package fanout

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"

	"live-gallery/internal/logging"
	"live-gallery/internal/metrics"

	"github.com/gorilla/websocket"
)

// Forwarder relays an accepted new-file frame to the stream publisher.
type Forwarder interface {
	Forward(ctx context.Context, frame []byte) error
}

// frame is an accepted inbound message waiting to be rebroadcast.
type frame struct {
	sender *Peer
	data   []byte
}

// Hub is the socket broadcast server. Every accepted new-file frame is
// forwarded and then written verbatim to every connected peer except the
// one that sent it.
type Hub struct {
	peers      map[*Peer]bool
	broadcast  chan frame
	Register   chan *Peer
	Unregister chan *Peer
	mu         sync.RWMutex

	// done is closed when Serve returns so peers never block on a stopped hub
	done chan struct{}

	forwarder Forwarder
	upgrader  websocket.Upgrader
	log       *logging.Logger
}

// NewHub creates a hub. forwarder may be nil, in which case frames are only
// rebroadcast.
func NewHub(forwarder Forwarder) *Hub {
	return &Hub{
		peers:      make(map[*Peer]bool),
		broadcast:  make(chan frame, 256),
		Register:   make(chan *Peer),
		Unregister: make(chan *Peer),
		done:       make(chan struct{}),
		forwarder:  forwarder,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Producers and viewers connect from other origins
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: logging.Component("hub"),
	}
}

// Serve runs the hub until ctx is done, then closes every peer.
func (h *Hub) Serve(ctx context.Context) error {
	h.mu.Lock()
	select {
	case <-h.done:
		h.done = make(chan struct{})
	default:
	}
	done := h.done
	h.mu.Unlock()
	defer close(done)

	for {
		// Lifecycle events take priority over broadcasts so a frame never
		// misses a peer that registered before it arrived.
		select {
		case <-ctx.Done():
			h.closeAllPeers()
			return ctx.Err()
		case p := <-h.Register:
			h.addPeer(p)
			continue
		case p := <-h.Unregister:
			h.removePeer(p)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.closeAllPeers()
			return ctx.Err()
		case p := <-h.Register:
			h.addPeer(p)
		case p := <-h.Unregister:
			h.removePeer(p)
		case f := <-h.broadcast:
			h.broadcastToPeers(f)
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (h *Hub) String() string { return "socket-hub" }

func (h *Hub) addPeer(p *Peer) {
	h.mu.Lock()
	h.peers[p] = true
	n := len(h.peers)
	h.mu.Unlock()

	metrics.FanoutClients.WithLabelValues("socket").Set(float64(n))
	h.log.Info("peer %d connected (%d total)", p.id, n)
}

func (h *Hub) removePeer(p *Peer) {
	h.mu.Lock()
	if _, ok := h.peers[p]; ok {
		delete(h.peers, p)
		close(p.send)
	}
	n := len(h.peers)
	h.mu.Unlock()

	metrics.FanoutClients.WithLabelValues("socket").Set(float64(n))
	h.log.Info("peer %d disconnected (%d total)", p.id, n)
}

// broadcastToPeers writes f to every peer but its sender in id order. A
// peer whose send buffer is full is dropped.
func (h *Hub) broadcastToPeers(f frame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	peers := make([]*Peer, 0, len(h.peers))
	for p := range h.peers {
		if p != f.sender {
			peers = append(peers, p)
		}
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].id < peers[j].id })

	for _, p := range peers {
		select {
		case p.send <- f.data:
			metrics.FanoutMessagesTotal.WithLabelValues("socket", "out").Inc()
		default:
			h.log.Warn("peer %d send buffer full, dropping peer", p.id)
			metrics.FanoutDroppedSubscribers.WithLabelValues("socket").Inc()
			close(p.send)
			delete(h.peers, p)
		}
	}
	metrics.FanoutClients.WithLabelValues("socket").Set(float64(len(h.peers)))
}

func (h *Hub) closeAllPeers() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for p := range h.peers {
		close(p.send)
		delete(h.peers, p)
	}
	metrics.FanoutClients.WithLabelValues("socket").Set(0)
	h.log.Info("socket hub stopped, all peers closed")
}

func (h *Hub) stopped() <-chan struct{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.done
}

// ClientCount returns the number of connected peers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// accept validates an inbound frame from sender. A new-file frame is
// forwarded synchronously and then queued for rebroadcast.
func (h *Hub) accept(ctx context.Context, sender *Peer, data []byte) {
	metrics.FanoutMessagesTotal.WithLabelValues("socket", "in").Inc()

	msg, err := Decode(data)
	switch {
	case errors.Is(err, ErrUnknownType):
		metrics.FanoutRejectedMessages.WithLabelValues("unknown_type").Inc()
		h.log.Warn("rejected frame from peer %d: %v", sender.id, err)
		return
	case err != nil:
		metrics.FanoutRejectedMessages.WithLabelValues("malformed").Inc()
		h.log.Warn("rejected frame from peer %d: %v", sender.id, err)
		return
	}

	nf, ok := msg.(NewFile)
	if !ok {
		h.log.Debug("ignoring %s frame from peer %d", msg.Type(), sender.id)
		return
	}

	if h.forwarder != nil {
		if err := h.forwarder.Forward(ctx, data); err != nil {
			h.log.Error("forward of %s failed: %v", nf.ID, err)
		}
	}

	select {
	case h.broadcast <- frame{sender: sender, data: data}:
	default:
		h.log.Warn("broadcast channel full, dropping %s", nf.ID)
	}
}

// ServeHTTP upgrades the request to a socket and attaches it to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.log.Warn("upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}

	p := NewPeer(h, conn)
	select {
	case h.Register <- p:
		p.Start()
	case <-h.stopped():
		_ = conn.Close()
	}
}
