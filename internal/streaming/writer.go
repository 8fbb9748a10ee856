package streaming

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"
)

// Sentinel errors for streaming operations.
var (
	// ErrWriteTimeout indicates that a frame could not be written within the
	// configured timeout. This typically means the client stopped reading.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates that the client disconnected. This is detected
	// via the request context being canceled.
	ErrClientGone = errors.New("client disconnected")
)

// DefaultWriteTimeout bounds a single frame write.
const DefaultWriteTimeout = 10 * time.Second

// EventWriter writes Server-Sent Events frames to a response, flushing each
// one and bounding every write with a deadline so a stalled client cannot
// hold its handler forever.
type EventWriter struct {
	ctx          context.Context
	w            http.ResponseWriter
	rc           *http.ResponseController
	writeTimeout time.Duration

	mu           sync.Mutex
	startTime    time.Time
	frames       int64
	bytesWritten int64
}

// NewEventWriter wraps w. A writeTimeout of zero uses DefaultWriteTimeout.
func NewEventWriter(ctx context.Context, w http.ResponseWriter, writeTimeout time.Duration) *EventWriter {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &EventWriter{
		ctx:          ctx,
		w:            w,
		rc:           http.NewResponseController(w),
		writeTimeout: writeTimeout,
		startTime:    time.Now(),
	}
}

// Data writes payload as one event. A payload spanning several lines is
// sent as consecutive data fields, which clients join back with newlines.
func (ew *EventWriter) Data(payload []byte) error {
	var buf bytes.Buffer
	for _, line := range bytes.Split(payload, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	return ew.write(buf.Bytes())
}

// Comment writes a comment line, which clients ignore. It keeps idle
// connections open through proxies.
func (ew *EventWriter) Comment(text string) error {
	return ew.write([]byte(": " + text + "\n\n"))
}

func (ew *EventWriter) write(p []byte) error {
	if ew.ctx.Err() != nil {
		return ErrClientGone
	}

	// Not every ResponseWriter supports deadlines; httptest recorders do not
	deadlineSet := ew.rc.SetWriteDeadline(time.Now().Add(ew.writeTimeout)) == nil

	n, err := ew.w.Write(p)
	if err == nil {
		err = ew.rc.Flush()
	}
	if deadlineSet {
		_ = ew.rc.SetWriteDeadline(time.Time{})
	}
	if err != nil {
		switch {
		case errors.Is(err, os.ErrDeadlineExceeded):
			return fmt.Errorf("%w: %v", ErrWriteTimeout, err)
		case ew.ctx.Err() != nil:
			return ErrClientGone
		default:
			return err
		}
	}

	ew.mu.Lock()
	ew.frames++
	ew.bytesWritten += int64(n)
	ew.mu.Unlock()
	return nil
}

// Stats returns streaming statistics
func (ew *EventWriter) Stats() (frames, bytesWritten int64, duration time.Duration) {
	ew.mu.Lock()
	defer ew.mu.Unlock()
	return ew.frames, ew.bytesWritten, time.Since(ew.startTime)
}
