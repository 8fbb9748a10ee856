// Package probe reads video dimensions and duration with ffprobe.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"

	"live-gallery/internal/logging"
	"live-gallery/internal/metrics"

	"github.com/goccy/go-json"
)

// ErrUnavailable is returned when ffprobe is not installed.
var ErrUnavailable = errors.New("ffprobe not available")

// VideoInfo contains information about a video file.
type VideoInfo struct {
	// Duration is rounded to whole seconds.
	Duration int
	Width    int
	Height   int
	Codec    string
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Prober runs ffprobe.
type Prober struct {
	binary string
}

// New locates ffprobe on PATH. The returned prober reports Available() false
// when it is missing.
func New() *Prober {
	path, err := exec.LookPath("ffprobe")
	if err != nil {
		logging.Info("ffprobe not found on PATH, video dimensions and duration will not be recorded")
		return &Prober{}
	}
	logging.Debug("ffprobe found at %s", path)
	return &Prober{binary: path}
}

// Available reports whether ffprobe was found.
func (p *Prober) Available() bool {
	return p != nil && p.binary != ""
}

// Probe retrieves dimension and duration information about a video file.
func (p *Prober) Probe(ctx context.Context, filePath string) (*VideoInfo, error) {
	if !p.Available() {
		metrics.ProbeTotal.WithLabelValues("unavailable").Inc()
		return nil, ErrUnavailable
	}

	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		metrics.ProbeTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("ffprobe error: %w - %s", err, stderr.String())
	}

	info, err := parse(stdout.Bytes())
	if err != nil {
		metrics.ProbeTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.ProbeTotal.WithLabelValues("success").Inc()
	return info, nil
}

// parse extracts the first video stream from ffprobe JSON output.
func parse(out []byte) (*VideoInfo, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &VideoInfo{}
	found := false
	for _, s := range probe.Streams {
		if s.CodecType != "video" {
			continue
		}
		info.Width = s.Width
		info.Height = s.Height
		info.Codec = s.CodecName
		info.Duration = seconds(s.Duration)
		found = true
		break
	}
	if !found {
		return nil, errors.New("no video stream")
	}

	// Container duration is more reliable than the stream's for most formats
	if d := seconds(probe.Format.Duration); d > 0 {
		info.Duration = d
	}
	return info, nil
}

func seconds(s string) int {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int(math.Round(f))
}
