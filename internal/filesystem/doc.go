/*
Package filesystem provides resilient filesystem operations for the ingest
pipeline.

# Retries

StatWithRetry, OpenWithRetry and ReadFileWithRetry wrap the matching os
calls and retry ESTALE (stale NFS file handle) errors with exponential
backoff. All other errors fail immediately.

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

Defaults are 3 retries starting at 50ms and capped at 500ms.

# Moves

MoveFile renames within a filesystem. When the source and destination live
on different devices (EXDEV) it copies, syncs the copy and removes the
source, so the ingest tree and the public tree may be separate mounts.
*/
package filesystem
