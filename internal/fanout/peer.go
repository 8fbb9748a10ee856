package fanout

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

// peerIDCounter orders peers for deterministic broadcast.
var peerIDCounter atomic.Uint64

// Peer is one socket connected to the hub.
type Peer struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewPeer wraps conn for hub.
func NewPeer(hub *Hub, conn *websocket.Conn) *Peer {
	return &Peer{
		id:   peerIDCounter.Add(1),
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
}

// ID returns the peer's identifier.
func (p *Peer) ID() uint64 { return p.id }

// readPump hands inbound text frames to the hub. It runs on its own
// goroutine, so a slow forward only delays this peer.
func (p *Peer) readPump() {
	defer func() {
		select {
		case p.hub.Unregister <- p:
		case <-p.hub.stopped():
		}
		_ = p.conn.Close()
	}()

	p.conn.SetReadLimit(maxMessageSize)
	if err := p.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.hub.log.Warn("peer %d closed unexpectedly: %v", p.id, err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		p.hub.accept(context.Background(), p, data)
	}
}

// writePump writes queued frames and keepalive pings.
func (p *Peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = p.conn.Close()
	}()

	for {
		select {
		case data, ok := <-p.send:
			if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// The hub closed the channel
				_ = p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				p.hub.log.Debug("write to peer %d failed: %v", p.id, err)
				return
			}

		case <-ticker.C:
			if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the peer.
func (p *Peer) Start() {
	go p.writePump()
	go p.readPump()
}
