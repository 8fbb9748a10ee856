// Package logging provides the leveled logger shared by the gallery server,
// the fanout bridge and the ingest watcher.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the process
//
// The level is read once from DEBUG or LOG_LEVEL. Subsystems obtain a
// prefixed logger with Component so that interleaved output from the
// watcher, dispatcher and fanout clients stays attributable.
package logging
