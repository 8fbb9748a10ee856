package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"live-gallery/internal/metrics"
)

var (
	// ErrNoDimensions is returned when a decoded source reports no width or height.
	ErrNoDimensions = errors.New("image has no decodable dimensions")
	// ErrUnsupported is returned when a backend cannot decode the source format.
	ErrUnsupported = errors.New("unsupported image format")
)

// Renderer backend names, as accepted by NewRenderer.
const (
	BackendVips    = "vips"
	BackendImaging = "imaging"
)

// Options controls the encoded renditions.
type Options struct {
	WebPQuality      int
	ThumbnailQuality int
	ThumbnailSize    int
}

// DefaultOptions returns quality 80 for both renditions and a 300px square thumbnail.
func DefaultOptions() Options {
	return Options{
		WebPQuality:      80,
		ThumbnailQuality: 80,
		ThumbnailSize:    300,
	}
}

// Output names the files a render writes.
type Output struct {
	WebPPath      string
	ThumbnailPath string
}

// File describes one written rendition.
type File struct {
	Path   string
	Size   int64
	Width  int
	Height int
}

// Rendition is the result of rendering one source image.
type Rendition struct {
	// SourceOrientation is the EXIF orientation found in the source.
	SourceOrientation int
	// Width and Height are the upright dimensions after the orientation was applied.
	Width     int
	Height    int
	WebP      File
	Thumbnail File
}

// Renderer turns an encoded still image into an upright full-size WebP and
// a square cover-cropped thumbnail.
type Renderer interface {
	Name() string
	Render(buf []byte, out Output) (*Rendition, error)
}

// NewRenderer returns the renderer for the named backend.
func NewRenderer(backend string, opts Options) (Renderer, error) {
	switch backend {
	case "", BackendVips:
		return NewVipsRenderer(opts)
	case BackendImaging:
		return NewImagingRenderer(opts), nil
	default:
		return nil, fmt.Errorf("unknown renderer backend %q", backend)
	}
}

// writeRendition writes data to path and records the output size.
func writeRendition(path, variant string, data []byte) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create %s directory: %w", variant, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("write %s: %w", variant, err)
	}
	metrics.RenderOutputBytes.WithLabelValues(variant).Add(float64(len(data)))
	return int64(len(data)), nil
}

func observeStep(backend, step string, start time.Time) {
	metrics.RenderDuration.WithLabelValues(backend, step).Observe(time.Since(start).Seconds())
}
