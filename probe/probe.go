// captioner/probe/probe.go
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var (
	ErrProbeFailed       = errors.New("probe process failed")
	ErrNoVideoStream     = errors.New("no video stream found")
	ErrMissingProperties = errors.New("probe output missing duration or dimensions")
)

// MediaInfo is a read-only snapshot of the source video, taken once per job.
type MediaInfo struct {
	Duration float64 `json:"durationSeconds"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
}

type Prober struct {
	bin string
}

func NewProber(bin string) (*Prober, error) {
	if _, err := exec.LookPath(bin); err != nil {
		return nil, fmt.Errorf("ffprobe binary not found or not in PATH: %s", bin)
	}
	return &Prober{bin: bin}, nil
}

// Probe runs ffprobe against the given video and extracts the container
// duration and the first video stream's dimensions. There is no retry:
// a probe failure aborts the whole job.
func (p *Prober) Probe(ctx context.Context, videoPath string) (MediaInfo, error) {
	cmd := exec.CommandContext(ctx, p.bin,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		videoPath,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return MediaInfo{}, fmt.Errorf("%w: %v: %s", ErrProbeFailed, err, strings.TrimSpace(stderr.String()))
	}

	return parseProbeOutput(stdout.Bytes())
}

// ffprobe reports numbers as JSON strings, hence the string-typed fields.
type probeReport struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

func parseProbeOutput(data []byte) (MediaInfo, error) {
	var report probeReport
	if err := json.Unmarshal(data, &report); err != nil {
		return MediaInfo{}, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}

	var info MediaInfo
	found := false
	for _, s := range report.Streams {
		if s.CodecType == "video" {
			info.Width = s.Width
			info.Height = s.Height
			found = true
			break
		}
	}
	if !found {
		return MediaInfo{}, ErrNoVideoStream
	}

	duration, err := strconv.ParseFloat(report.Format.Duration, 64)
	if err != nil || duration <= 0 || info.Width <= 0 || info.Height <= 0 {
		return MediaInfo{}, ErrMissingProperties
	}
	info.Duration = duration

	return info, nil
}
