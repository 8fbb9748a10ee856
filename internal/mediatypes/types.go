package mediatypes

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Kind is the ingest classification of a file.
type Kind string

const (
	// KindImage is a still image with a decodable signature.
	KindImage Kind = "image"
	// KindVideo is a video container with a recognized signature.
	KindVideo Kind = "video"
	// KindRaw is a camera RAW file, matched by extension.
	KindRaw Kind = "raw"
	// KindUnknown is anything else. Unknown files are discarded.
	KindUnknown Kind = "unknown"
)

// RawExtensions lists camera RAW formats that are archived without decoding.
var RawExtensions = map[string]bool{
	".cr2": true,
	".cr3": true,
	".nef": true,
	".nrw": true,
	".arw": true,
	".sr2": true,
	".srf": true,
	".dng": true,
	".raf": true,
	".orf": true,
	".rw2": true,
	".rwl": true,
	".pef": true,
	".srw": true,
	".raw": true,
	".3fr": true,
	".erf": true,
	".kdc": true,
	".mrw": true,
	".x3f": true,
	".iiq": true,
}

// Classification is the result of Classify.
type Classification struct {
	Kind Kind
	MIME string
}

// IsRawExtension reports whether name carries a RAW camera extension.
func IsRawExtension(name string) bool {
	return RawExtensions[strings.ToLower(filepath.Ext(name))]
}

// Classify determines the kind of a file from its name and leading bytes.
// The RAW allow-list is consulted first because many RAW formats share a
// TIFF signature. Otherwise the byte signature decides: image/* (except SVG,
// which carries no raster dimensions) is an image, video/* is a video.
func Classify(name string, head []byte) Classification {
	if IsRawExtension(name) {
		return Classification{Kind: KindRaw, MIME: "application/octet-stream"}
	}

	mt := mimetype.Detect(head)
	mime := mt.String()

	for m := mt; m != nil; m = m.Parent() {
		switch {
		case m.Is("image/svg+xml"):
			return Classification{Kind: KindUnknown, MIME: mime}
		case strings.HasPrefix(m.String(), "image/"):
			return Classification{Kind: KindImage, MIME: mime}
		case strings.HasPrefix(m.String(), "video/"):
			return Classification{Kind: KindVideo, MIME: mime}
		}
	}

	return Classification{Kind: KindUnknown, MIME: mime}
}

// SniffLen is the number of leading bytes Classify needs to see.
const SniffLen = 3072

// String implements fmt.Stringer.
func (k Kind) String() string {
	return string(k)
}
