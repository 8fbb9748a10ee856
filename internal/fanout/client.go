package fanout

import (
	"context"
	"sync/atomic"
	"time"

	"live-gallery/internal/logging"
	"live-gallery/internal/metrics"

	"github.com/gorilla/websocket"
)

// DefaultReconnectDelay is the fixed wait between connection attempts.
const DefaultReconnectDelay = 5 * time.Second

// Client is a socket client that keeps a connection to the hub open,
// reconnecting forever with a fixed delay. Frames published while it is
// disconnected wait in a bounded buffer.
type Client struct {
	url    string
	delay  time.Duration
	dialer *websocket.Dialer
	send   chan []byte
	log    *logging.Logger

	// OnMessage, if set, receives every decoded inbound frame.
	OnMessage func(Message)

	connected atomic.Bool
}

// NewClient returns a client for the hub at url.
func NewClient(url string, delay time.Duration) *Client {
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	return &Client{
		url:    url,
		delay:  delay,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		send:   make(chan []byte, 256),
		log:    logging.Component("bridge-client"),
	}
}

// Publish queues m without blocking. It reports false when the message was
// dropped because the buffer is full or m could not be encoded.
func (c *Client) Publish(m Message) bool {
	data, err := Encode(m)
	if err != nil {
		c.log.Error("encode %s: %v", m.Type(), err)
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.log.Warn("send buffer full, dropping %s message", m.Type())
		return false
	}
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Serve dials the hub and pumps frames until ctx is done.
func (c *Client) Serve(ctx context.Context) error {
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("connect to %s failed: %v (retrying in %v)", c.url, err, c.delay)
		} else {
			c.log.Info("connected to %s", c.url)
			c.connected.Store(true)
			err = c.run(ctx, conn)
			c.connected.Store(false)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("connection to %s lost: %v (reconnecting in %v)", c.url, err, c.delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.delay):
			metrics.FanoutReconnectsTotal.Inc()
		}
	}
}

// run owns conn until it fails or ctx is done.
func (c *Client) run(ctx context.Context, conn *websocket.Conn) error {
	defer func() { _ = conn.Close() }()

	readErr := make(chan error, 1)
	go func() {
		readErr <- c.readLoop(conn)
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return ctx.Err()

		case err := <-readErr:
			return err

		case data := <-c.send:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return err
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
			metrics.FanoutMessagesTotal.WithLabelValues("socket", "out").Inc()

		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return err
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	// Keep the deadline fresh on server pings too
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if kind != websocket.TextMessage || c.OnMessage == nil {
			continue
		}
		msg, err := Decode(data)
		if err != nil {
			c.log.Debug("ignoring inbound frame: %v", err)
			continue
		}
		c.OnMessage(msg)
	}
}

// String implements fmt.Stringer for supervisor logging.
func (c *Client) String() string { return "bridge-client" }
