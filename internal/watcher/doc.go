// Package watcher turns filesystem notifications under the ingest root into
// one "ready" signal per new file.
//
// Every directory below the root is watched with fsnotify; directories
// created later are adopted and swept. A file is ready once its size has
// stayed the same for the quiet period, checked every poll interval, so
// partially copied uploads are never handed on. Files present when the
// watcher starts are treated as new.
//
// Dot-files, and files under dot-directories, are in-progress transfers
// (rsync, browser downloads) that get renamed when done. They are never
// handed on; one left untouched for the hidden quiet period is removed.
package watcher
