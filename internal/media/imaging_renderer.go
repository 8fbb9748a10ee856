package media

import (
	"bytes"
	"fmt"
	"image"
	"time"

	"live-gallery/internal/metrics"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImagingRenderer renders in pure Go: decode with the standard image
// registry, orient with imaging, encode with libwebp bindings.
type ImagingRenderer struct {
	opts Options
}

// NewImagingRenderer returns a renderer that needs no libvips.
func NewImagingRenderer(opts Options) *ImagingRenderer {
	return &ImagingRenderer{opts: opts}
}

// Name implements Renderer.
func (r *ImagingRenderer) Name() string { return BackendImaging }

// Render implements Renderer.
func (r *ImagingRenderer) Render(buf []byte, out Output) (*Rendition, error) {
	rendition, err := r.render(buf, out)
	if err != nil {
		metrics.RenderErrors.WithLabelValues(BackendImaging).Inc()
	}
	return rendition, err
}

func (r *ImagingRenderer) render(buf []byte, out Output) (*Rendition, error) {
	start := time.Now()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupported, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ErrNoDimensions
	}

	src, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupported, err)
	}

	orientation := ReadOrientation(buf)
	upright := ApplyOrientation(src, orientation)
	bounds := upright.Bounds()
	observeStep(BackendImaging, "decode", start)

	rendition := &Rendition{
		SourceOrientation: orientation,
		Width:             bounds.Dx(),
		Height:            bounds.Dy(),
	}

	start = time.Now()
	webpBytes, err := encodeWebP(upright, r.opts.WebPQuality)
	if err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}
	size, err := writeRendition(out.WebPPath, "webp", webpBytes)
	if err != nil {
		return nil, err
	}
	rendition.WebP = File{Path: out.WebPPath, Size: size, Width: rendition.Width, Height: rendition.Height}
	observeStep(BackendImaging, "webp", start)

	start = time.Now()
	n := r.opts.ThumbnailSize
	thumb := imaging.Fill(upright, n, n, imaging.Center, imaging.Lanczos)
	thumbBytes, err := encodeWebP(thumb, r.opts.ThumbnailQuality)
	if err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	size, err = writeRendition(out.ThumbnailPath, "thumbnail", thumbBytes)
	if err != nil {
		return nil, err
	}
	rendition.Thumbnail = File{Path: out.ThumbnailPath, Size: size, Width: n, Height: n}
	observeStep(BackendImaging, "thumbnail", start)

	return rendition, nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(quality))
	if err != nil {
		return nil, err
	}
	// Slowest method, best compression
	opts.Method = 6

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
