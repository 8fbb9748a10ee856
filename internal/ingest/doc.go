// Package ingest moves stable files from the ingest tree into the gallery.
//
// A Dispatcher owns an unbounded FIFO Queue and a single consumer goroutine,
// so files are handled strictly one at a time in the order the watcher
// reported them. Each path moves through detected, queued, processing and
// then done or failed; a path already queued or processing is not queued
// twice. A file that has started processing finishes even during shutdown.
//
// The Processor is the per-file step: classify by signature, delete unknown
// content, archive RAW files, and for images and videos hash, skip
// duplicates, render variants, move the original into place, commit the
// media file with its variants in one transaction and publish a new-file
// event. A file that fails while still in the ingest tree is moved to the
// quarantine directory.
package ingest
