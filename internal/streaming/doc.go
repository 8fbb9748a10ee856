/*
Package streaming provides timeout-protected Server-Sent Events writing.

# Overview

An event stream stays open for as long as the browser keeps the page, so a
client that stops reading would otherwise pin its handler goroutine and its
slot in the event broker forever. [EventWriter] bounds every frame write with
a deadline set through http.ResponseController and flushes each frame so it
reaches the client immediately.

# Basic Usage

	func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		ew := streaming.NewEventWriter(r.Context(), w, 10*time.Second)

		if err := ew.Data(frame); err != nil {
			return // client is gone or too slow
		}
		_ = ew.Comment("ping")
	}

# Errors

  - [ErrWriteTimeout]: the frame did not drain within the write timeout
  - [ErrClientGone]: the request context was canceled

Any other error is returned as reported by the underlying connection.

# Thread Safety

An EventWriter must be used from a single goroutine, the one running the
handler. [EventWriter.Stats] may be called from anywhere.
*/
package streaming
