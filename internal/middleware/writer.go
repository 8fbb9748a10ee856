package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
)

// responseWriter captures the status code and byte count of a response.
// It passes Flush and Hijack through so event streams and socket upgrades
// keep working behind the middleware.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
	hijacked     bool

	// onHijackedClose, if set, runs once when a hijacked connection is
	// closed, with the bytes written to it after the hijack.
	onHijackedClose func(written int64)
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.wroteHeader = true
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("underlying ResponseWriter does not support hijacking")
	}
	conn, brw, err := h.Hijack()
	if err != nil {
		return nil, nil, err
	}
	// A hijacked connection answers 101 itself
	rw.statusCode = http.StatusSwitchingProtocols
	rw.wroteHeader = true
	rw.hijacked = true

	if rw.onHijackedClose != nil && conn != nil {
		conn = &trackedConn{Conn: conn, onClose: rw.onHijackedClose}
	}
	return conn, brw, nil
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// trackedConn counts bytes written to a hijacked connection and reports
// them once on Close.
type trackedConn struct {
	net.Conn
	written atomic.Int64
	once    sync.Once
	onClose func(written int64)
}

func (c *trackedConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	c.written.Add(int64(n))
	return n, err
}

func (c *trackedConn) Close() error {
	err := c.Conn.Close()
	c.once.Do(func() { c.onClose(c.written.Load()) })
	return err
}
