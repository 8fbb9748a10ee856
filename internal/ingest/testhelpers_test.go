package ingest

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"live-gallery/internal/database"
	"live-gallery/internal/fanout"
	"live-gallery/internal/filesystem"
	"live-gallery/internal/media"
)

type staticTarget string

func (s staticTarget) Current() string { return string(s) }

type recordingPublisher struct {
	mu  sync.Mutex
	got []fanout.Message
}

func (p *recordingPublisher) Publish(m fanout.Message) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, m)
	return true
}

func (p *recordingPublisher) messages() []fanout.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]fanout.Message(nil), p.got...)
}

type fixture struct {
	db         *database.Database
	ingestDir  string
	imagesDir  string
	quarantine string
	publisher  *recordingPublisher
	processor  *Processor
}

// setupProcessor builds a processor over a fresh database with folder F1 as
// the target, rendering with the pure-Go backend.
func setupProcessor(t *testing.T, target string) *fixture {
	t.Helper()

	root := t.TempDir()
	db, err := database.New(context.Background(), filepath.Join(root, "gallery.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.CreateFolder(context.Background(), database.Folder{ID: "F1", Name: "Live", Visible: true, GridEligible: true}); err != nil {
		t.Fatalf("create folder: %v", err)
	}

	f := &fixture{
		db:         db,
		ingestDir:  filepath.Join(root, "public", "ingest"),
		imagesDir:  filepath.Join(root, "public", "images"),
		quarantine: filepath.Join(root, "quarantine"),
		publisher:  &recordingPublisher{},
	}
	for _, dir := range []string{f.ingestDir, f.imagesDir} {
		if err := filesystem.EnsureDir(dir); err != nil {
			t.Fatalf("create %s: %v", dir, err)
		}
	}

	p, err := NewProcessor(ProcessorConfig{
		Store:         db,
		Targets:       staticTarget(target),
		Renderer:      media.NewImagingRenderer(media.DefaultOptions()),
		Layout:        media.NewLayout(f.imagesDir),
		Publisher:     f.publisher,
		QuarantineDir: f.quarantine,
	})
	if err != nil {
		t.Fatalf("NewProcessor failed: %v", err)
	}
	f.processor = p
	return f
}

// drop writes data into the ingest directory and returns its path.
func (f *fixture) drop(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(f.ingestDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	n, err := f.db.CountMediaFiles(context.Background(), "")
	if err != nil {
		t.Fatalf("CountMediaFiles failed: %v", err)
	}
	return n
}

func assertGone(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("%s should no longer exist (err=%v)", path, err)
	}
}

func assertExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("%s should exist: %v", path, err)
	}
}

// testJPEG encodes a w x h two-tone image, tagged with orientation when it
// is non-zero.
func testJPEG(t *testing.T, w, h int, orientation uint16) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 255, A: 255}
			if x >= w/2 {
				c = color.RGBA{B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	raw := buf.Bytes()
	if orientation == 0 {
		return raw
	}

	var tiff bytes.Buffer
	tiff.WriteString("MM\x00\x2a")
	_ = binary.Write(&tiff, binary.BigEndian, uint32(8))
	_ = binary.Write(&tiff, binary.BigEndian, uint16(1))
	_ = binary.Write(&tiff, binary.BigEndian, uint16(0x0112))
	_ = binary.Write(&tiff, binary.BigEndian, uint16(3))
	_ = binary.Write(&tiff, binary.BigEndian, uint32(1))
	_ = binary.Write(&tiff, binary.BigEndian, orientation)
	_ = binary.Write(&tiff, binary.BigEndian, uint16(0))
	_ = binary.Write(&tiff, binary.BigEndian, uint32(0))
	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)

	out := make([]byte, 0, len(raw)+len(payload)+4)
	out = append(out, raw[:2]...)
	out = append(out, 0xFF, 0xE1)
	out = binary.BigEndian.AppendUint16(out, uint16(len(payload)+2))
	out = append(out, payload...)
	out = append(out, raw[2:]...)
	return out
}

// mp4Header is enough of an ISO BMFF file for signature detection.
func mp4Header() []byte {
	box := []byte{0x00, 0x00, 0x00, 0x18}
	box = append(box, []byte("ftypmp42")...)
	box = append(box, 0x00, 0x00, 0x00, 0x00)
	box = append(box, []byte("mp42isom")...)
	return append(box, bytes.Repeat([]byte{0}, 256)...)
}
