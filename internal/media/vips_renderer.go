package media

import (
	"fmt"
	"time"

	"live-gallery/internal/logging"
	"live-gallery/internal/metrics"

	"github.com/davidbyttow/govips/v2/vips"
)

// VipsRenderer renders with libvips.
type VipsRenderer struct {
	opts Options
}

// NewVipsRenderer initializes libvips if needed and returns a renderer.
func NewVipsRenderer(opts Options) (*VipsRenderer, error) {
	if err := InitVips(); err != nil {
		return nil, err
	}
	return &VipsRenderer{opts: opts}, nil
}

// Name implements Renderer.
func (r *VipsRenderer) Name() string { return BackendVips }

// Render implements Renderer.
func (r *VipsRenderer) Render(buf []byte, out Output) (*Rendition, error) {
	rendition, err := r.render(buf, out)
	if err != nil {
		metrics.RenderErrors.WithLabelValues(BackendVips).Inc()
	}
	return rendition, err
}

func (r *VipsRenderer) render(buf []byte, out Output) (*Rendition, error) {
	if !IsVipsAvailable() {
		return nil, errVipsUnavailable
	}

	start := time.Now()
	ref, err := vips.NewImageFromBuffer(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupported, err)
	}
	defer ref.Close()

	if ref.Width() <= 0 || ref.Height() <= 0 {
		return nil, ErrNoDimensions
	}

	orientation := ref.Orientation()
	if orientation < 1 || orientation > 8 {
		orientation = OrientationNormal
	}
	if err := ref.AutoRotate(); err != nil {
		return nil, fmt.Errorf("apply orientation: %w", err)
	}
	observeStep(BackendVips, "decode", start)

	rendition := &Rendition{
		SourceOrientation: orientation,
		Width:             ref.Width(),
		Height:            ref.Height(),
	}

	logging.Debug("vips decoded image: %dx%d (orientation %d)", rendition.Width, rendition.Height, orientation)

	start = time.Now()
	webpBytes, _, err := ref.ExportWebp(&vips.WebpExportParams{
		Quality:         r.opts.WebPQuality,
		ReductionEffort: 6,
		StripMetadata:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}
	size, err := writeRendition(out.WebPPath, "webp", webpBytes)
	if err != nil {
		return nil, err
	}
	rendition.WebP = File{Path: out.WebPPath, Size: size, Width: rendition.Width, Height: rendition.Height}
	observeStep(BackendVips, "webp", start)

	start = time.Now()
	thumb, err := ref.Copy()
	if err != nil {
		return nil, fmt.Errorf("copy for thumbnail: %w", err)
	}
	defer thumb.Close()

	if err := thumb.Thumbnail(r.opts.ThumbnailSize, r.opts.ThumbnailSize, vips.InterestingCentre); err != nil {
		return nil, fmt.Errorf("resize thumbnail: %w", err)
	}
	thumbBytes, _, err := thumb.ExportWebp(&vips.WebpExportParams{
		Quality:         r.opts.ThumbnailQuality,
		ReductionEffort: 6,
		StripMetadata:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	size, err = writeRendition(out.ThumbnailPath, "thumbnail", thumbBytes)
	if err != nil {
		return nil, err
	}
	rendition.Thumbnail = File{Path: out.ThumbnailPath, Size: size, Width: thumb.Width(), Height: thumb.Height()}
	observeStep(BackendVips, "thumbnail", start)

	return rendition, nil
}
