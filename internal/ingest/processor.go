package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"live-gallery/internal/contenthash"
	"live-gallery/internal/database"
	"live-gallery/internal/fanout"
	"live-gallery/internal/filesystem"
	"live-gallery/internal/logging"
	"live-gallery/internal/media"
	"live-gallery/internal/mediatypes"
	"live-gallery/internal/metrics"
	"live-gallery/internal/probe"
)

// ErrNoTarget is returned when no ingest target folder has been resolved.
var ErrNoTarget = errors.New("no ingest target")

// Outcome is how a processed file ended up.
type Outcome string

const (
	OutcomeIngested  Outcome = "ingested"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
	OutcomeArchived  Outcome = "archived"
	OutcomeError     Outcome = "error"
)

// Store is the persistence the processor needs.
type Store interface {
	FindByHash(ctx context.Context, hash string) (*database.MediaFile, error)
	CreateWithVariants(ctx context.Context, file database.MediaFile, variants []database.Variant) (*database.MediaFile, error)
	SetLastIngest(ctx context.Context, t time.Time) error
}

// Targets reports the folder new files go into.
type Targets interface {
	Current() string
}

// Publisher announces ingested files.
type Publisher interface {
	Publish(fanout.Message) bool
}

// VideoProber reads video metadata.
type VideoProber interface {
	Probe(ctx context.Context, path string) (*probe.VideoInfo, error)
}

// ProcessorConfig wires a Processor.
type ProcessorConfig struct {
	Store     Store
	Targets   Targets
	Renderer  media.Renderer
	Layout    media.Layout
	Publisher Publisher   // optional
	Prober    VideoProber // optional

	// QuarantineDir receives files that failed while still in the ingest tree
	QuarantineDir string
	Retry         filesystem.RetryConfig
}

// Processor takes one stable file from the ingest tree to its final place.
type Processor struct {
	cfg ProcessorConfig
	log *logging.Logger
}

// NewProcessor validates cfg and returns a processor.
func NewProcessor(cfg ProcessorConfig) (*Processor, error) {
	if cfg.Store == nil {
		return nil, errors.New("processor requires a store")
	}
	if cfg.Targets == nil {
		return nil, errors.New("processor requires a target resolver")
	}
	if cfg.Renderer == nil {
		return nil, errors.New("processor requires a renderer")
	}
	if cfg.Layout.Root() == "" {
		return nil, errors.New("processor requires an images directory")
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialBackoff == 0 {
		cfg.Retry = filesystem.DefaultRetryConfig()
	}
	return &Processor{cfg: cfg, log: logging.Component("ingest")}, nil
}

// job carries one file through the pipeline.
type job struct {
	path   string
	name   string
	kind   mediatypes.Kind
	size   int64
	target string
	moved  bool
	start  time.Time
}

// Process implements Handler. Duplicates, unrecognized files and RAW
// archives are successes; only real failures return an error.
func (p *Processor) Process(ctx context.Context, path string) (err error) {
	j := &job{path: path, name: filepath.Base(path), kind: mediatypes.KindUnknown, start: time.Now()}
	outcome := OutcomeError

	defer func() {
		metrics.IngestFilesTotal.WithLabelValues(j.kind.String(), string(outcome)).Inc()
		metrics.IngestProcessingDuration.WithLabelValues(j.kind.String()).Observe(time.Since(j.start).Seconds())
		if err != nil && !j.moved {
			p.quarantine(j)
		}
	}()

	info, err := filesystem.StatWithRetry(path, p.cfg.Retry)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	if !info.Mode().IsRegular() {
		outcome = OutcomeRejected
		return nil
	}
	j.size = info.Size()

	head, err := p.readHead(path)
	if err != nil {
		return err
	}
	j.kind = mediatypes.Classify(j.name, head).Kind

	if j.kind == mediatypes.KindUnknown {
		p.log.Info("discarding %s: unrecognized content", j.name)
		if err := filesystem.RemoveFile(path); err != nil {
			return fmt.Errorf("remove unrecognized file: %w", err)
		}
		j.moved = true
		outcome = OutcomeRejected
		return nil
	}

	j.target = p.cfg.Targets.Current()
	if j.target == "" {
		return ErrNoTarget
	}

	switch j.kind {
	case mediatypes.KindRaw:
		outcome, err = p.archiveRaw(j)
	case mediatypes.KindVideo:
		outcome, err = p.ingestVideo(ctx, j)
	default:
		outcome, err = p.ingestImage(ctx, j)
	}
	if err != nil {
		outcome = OutcomeError
		return err
	}

	if outcome == OutcomeIngested {
		metrics.IngestBytesTotal.WithLabelValues(j.kind.String()).Add(float64(j.size))
		if err := p.cfg.Store.SetLastIngest(ctx, time.Now()); err != nil {
			p.log.Warn("record last ingest time: %v", err)
		}
	}
	return nil
}

func (p *Processor) readHead(path string) ([]byte, error) {
	f, err := filesystem.OpenWithRetry(path, p.cfg.Retry)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, mediatypes.SniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read header: %w", err)
	}
	return head[:n], nil
}

// duplicate reports whether hash is already stored, deleting the incoming
// file when it is.
func (p *Processor) duplicate(ctx context.Context, j *job, hash string) (bool, error) {
	existing, err := p.cfg.Store.FindByHash(ctx, hash)
	if err != nil {
		return false, fmt.Errorf("duplicate check: %w", err)
	}
	if existing == nil {
		return false, nil
	}

	p.log.Info("discarding %s: duplicate of %s (%s)", j.name, existing.FileName, existing.ID)
	if err := filesystem.RemoveFile(j.path); err != nil {
		return true, fmt.Errorf("remove duplicate: %w", err)
	}
	j.moved = true
	return true, nil
}

func (p *Processor) archiveRaw(j *job) (Outcome, error) {
	dst := p.cfg.Layout.Raw(j.target, j.name)
	if filesystem.Exists(dst.Disk) {
		hash, err := contenthash.SumFile(j.path)
		if err != nil {
			return OutcomeError, fmt.Errorf("hash raw file: %w", err)
		}
		ext := filepath.Ext(j.name)
		dst = p.cfg.Layout.Raw(j.target, j.name[:len(j.name)-len(ext)]+"_"+hash[:8]+ext)
	}

	if err := filesystem.MoveFile(j.path, dst.Disk); err != nil {
		return OutcomeError, fmt.Errorf("archive raw file: %w", err)
	}
	j.moved = true
	p.log.Info("archived RAW %s to %s", j.name, dst.Public)
	return OutcomeArchived, nil
}

func (p *Processor) ingestVideo(ctx context.Context, j *job) (Outcome, error) {
	hash, err := contenthash.SumFile(j.path)
	if err != nil {
		return OutcomeError, fmt.Errorf("hash: %w", err)
	}
	if dup, err := p.duplicate(ctx, j, hash); dup || err != nil {
		return OutcomeDuplicate, err
	}

	paths := p.cfg.Layout.Variants(j.target, j.name, hash)
	if err := filesystem.MoveFile(j.path, paths.Original.Disk); err != nil {
		return OutcomeError, fmt.Errorf("move original: %w", err)
	}
	j.moved = true

	file := database.MediaFile{
		Hash:     hash,
		FileName: j.name,
		Kind:     database.FileKindVideo,
		Size:     j.size,
		FolderID: j.target,
	}
	if p.cfg.Prober != nil {
		info, err := p.cfg.Prober.Probe(ctx, paths.Original.Disk)
		switch {
		case err == nil:
			file.Width = database.IntPtr(info.Width)
			file.Height = database.IntPtr(info.Height)
			file.Duration = database.IntPtr(info.Duration)
		case errors.Is(err, probe.ErrUnavailable):
		default:
			p.log.Warn("probe %s: %v", j.name, err)
		}
	}

	variants := []database.Variant{{
		Kind: database.VariantOriginal,
		Path: paths.Original.Public,
		Size: j.size,
	}}
	return p.store(ctx, j, file, variants)
}

func (p *Processor) ingestImage(ctx context.Context, j *job) (Outcome, error) {
	buf, err := filesystem.ReadFileWithRetry(j.path, p.cfg.Retry)
	if err != nil {
		return OutcomeError, fmt.Errorf("read: %w", err)
	}
	j.size = int64(len(buf))

	hash := contenthash.Sum(buf)
	if dup, err := p.duplicate(ctx, j, hash); dup || err != nil {
		return OutcomeDuplicate, err
	}

	paths := p.cfg.Layout.Variants(j.target, j.name, hash)
	rend, err := p.cfg.Renderer.Render(buf, paths.Output())
	if err != nil {
		removeRenditions(paths)
		return OutcomeError, fmt.Errorf("render with %s: %w", p.cfg.Renderer.Name(), err)
	}

	if err := filesystem.MoveFile(j.path, paths.Original.Disk); err != nil {
		removeRenditions(paths)
		return OutcomeError, fmt.Errorf("move original: %w", err)
	}
	j.moved = true

	if rend.SourceOrientation != media.OrientationNormal {
		p.log.Debug("%s: applied orientation %d, now %dx%d", j.name, rend.SourceOrientation, rend.Width, rend.Height)
	}

	file := database.MediaFile{
		Hash:        hash,
		FileName:    j.name,
		Kind:        database.FileKindImage,
		Width:       database.IntPtr(rend.Width),
		Height:      database.IntPtr(rend.Height),
		Size:        j.size,
		Orientation: media.OrientationNormal,
		FolderID:    j.target,
	}
	variants := []database.Variant{
		{
			Kind: database.VariantOriginal,
			Path: paths.Original.Public,
			Size: j.size,
		},
		{
			Kind:   database.VariantWebP,
			Path:   paths.WebP.Public,
			Size:   rend.WebP.Size,
			Width:  database.IntPtr(rend.WebP.Width),
			Height: database.IntPtr(rend.WebP.Height),
		},
		{
			Kind:   database.VariantThumbnail,
			Path:   paths.Thumbnail.Public,
			Size:   rend.Thumbnail.Size,
			Width:  database.IntPtr(rend.Thumbnail.Width),
			Height: database.IntPtr(rend.Thumbnail.Height),
		},
	}
	return p.store(ctx, j, file, variants)
}

// store commits file and variants and announces the result. Files already
// moved into the images tree stay there when the commit fails.
func (p *Processor) store(ctx context.Context, j *job, file database.MediaFile, variants []database.Variant) (Outcome, error) {
	created, err := p.cfg.Store.CreateWithVariants(ctx, file, variants)
	if err != nil {
		return OutcomeError, fmt.Errorf("store %s: %w", j.name, err)
	}

	p.log.Info("ingested %s %s into %s as %s (%d variant(s), %s)",
		j.kind, j.name, j.target, created.ID, len(created.Variants), time.Since(j.start).Round(time.Millisecond))

	if p.cfg.Publisher != nil && !p.cfg.Publisher.Publish(fanout.NewFileFrom(created)) {
		p.log.Warn("new-file event for %s was not sent", created.ID)
	}
	return OutcomeIngested, nil
}

func removeRenditions(paths media.VariantPaths) {
	for _, path := range []string{paths.WebP.Disk, paths.Thumbnail.Disk} {
		if err := filesystem.RemoveFile(path); err != nil {
			logging.Warn("remove partial rendition %s: %v", path, err)
		}
	}
}

// quarantine moves a failed file out of the ingest tree so it is not seen again.
func (p *Processor) quarantine(j *job) {
	if p.cfg.QuarantineDir == "" {
		return
	}
	if _, err := os.Lstat(j.path); err != nil {
		return
	}

	dst := filepath.Join(p.cfg.QuarantineDir, j.name)
	if filesystem.Exists(dst) {
		dst = filepath.Join(p.cfg.QuarantineDir, strconv.FormatInt(time.Now().UnixNano(), 10)+"_"+j.name)
	}
	if err := filesystem.MoveFile(j.path, dst); err != nil {
		p.log.Error("quarantine %s: %v", j.name, err)
		return
	}
	p.log.Warn("quarantined %s to %s", j.name, dst)
}
