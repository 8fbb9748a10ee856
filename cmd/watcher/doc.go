// Command watcher runs the ingest pipeline.
//
// Files dropped anywhere under $PUBLIC_DIR/ingest are picked up once their
// size has been stable for QUIET_PERIOD, then processed strictly one at a
// time:
//
//  1. Sniff the content signature. Unrecognized files are deleted and RAW
//     files are archived untouched.
//  2. Hash the raw bytes and drop exact duplicates.
//  3. Render an upright WebP and a square thumbnail (images only).
//  4. Move the original under $PUBLIC_DIR/images/<folder>/original and
//     record the file with its variants in one transaction.
//  5. Announce the file on the bridge socket (BRIDGE_URL).
//
// The destination folder comes from TARGET_CONFIG, re-read every
// TARGET_POLL_INTERVAL. When it names no existing folder, a folder whose name
// contains "live" is used, or one named "Live" is created.
//
// Health and metrics are served on METRICS_PORT (default 9091).
package main
