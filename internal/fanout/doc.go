/*
Package fanout carries new-file events from the ingest process to live
viewers over two hops.

# Wire protocol

Every frame is a JSON envelope {"type": ..., "payload": ...}. Message is a
closed set: NewFile ("new-file") and Connected ("connected"). Decode rejects
any other type with ErrUnknownType and anything unparseable with
ErrMalformed. Integer payload fields are decimal strings.

# Hop 1: socket hub

Hub accepts WebSocket connections from producers and viewers alike. An
inbound new-file frame is first posted to the gallery's internal publish
endpoint through a Forwarder, then written verbatim to every other peer.
Peers whose send buffer is full are dropped.

Client is the producer side: it keeps a connection to the hub open and
reconnects forever with a fixed delay.

# Hop 2: event stream broker

Broker is the set of open server-sent event streams in the gallery process.
Publish never blocks; a stream that cannot keep up is removed and its
handler returns. Delivery is best effort and ordered per connection only.
*/
package fanout
