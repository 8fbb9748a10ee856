// Package contenthash fingerprints ingested files for duplicate detection.
//
// The digest is MD5 over the raw bytes, rendered as lowercase hex. It is a
// byte-identity check, not a security primitive.
package contenthash

import (
	"crypto/md5" //nolint:gosec // MD5 used for content identity, not security
	"encoding/hex"
	"fmt"
	"io"

	"live-gallery/internal/filesystem"
)

// Sum returns the hex digest of buf.
func Sum(buf []byte) string {
	sum := md5.Sum(buf) //nolint:gosec // see package doc
	return hex.EncodeToString(sum[:])
}

// SumReader streams r through the digest.
func SumReader(r io.Reader) (string, error) {
	h := md5.New() //nolint:gosec // see package doc
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumFile hashes the file at path without loading it into memory.
func SumFile(path string) (string, error) {
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	return SumReader(f)
}
