// captioner/ffmpeg/runner.go
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strings"
	"time"

	"captioner/config"
	"captioner/subtitle"

	"github.com/google/shlex"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	log "github.com/sirupsen/logrus"
)

var (
	ErrPreviewFailed = errors.New("preview generation failed")
	ErrEncodeFailed  = errors.New("final encode failed")
)

// previewSeconds caps how much of the source the animated preview covers.
const previewSeconds = 3.0

type Runner struct {
	cfg       *config.Config
	workDir   string
	extraArgs []string
}

func NewRunner(cfg *config.Config, workDir string) (*Runner, error) {
	if _, err := exec.LookPath(cfg.FFBin); err != nil {
		return nil, fmt.Errorf("ffmpeg binary not found or not in PATH: %s", cfg.FFBin)
	}

	// Operator-supplied passthrough flags are split shell-style, never run
	// through an actual shell.
	extra, err := shlex.Split(cfg.FFExtraArgs)
	if err != nil {
		return nil, fmt.Errorf("invalid FF_EXTRA_ARGS: %w", err)
	}

	return &Runner{
		cfg:       cfg,
		workDir:   workDir,
		extraArgs: extra,
	}, nil
}

type PreviewRequest struct {
	VideoPath   string
	PalettePath string
	OutputPath  string
	Window      float64 // effective processing window from reconciliation
}

type EncodeRequest struct {
	VideoPath    string
	SubtitlePath string
	OutputPath   string
	Plan         subtitle.Plan
	Options      subtitle.Options
}

// GeneratePreview produces a small animated GIF over the first seconds of the
// source using the two-pass palette pipeline. The intermediate palette file
// is removed best-effort whether or not the passes succeed. Returns the
// captured tool output for diagnostics.
func (r *Runner) GeneratePreview(ctx context.Context, req PreviewRequest) (string, error) {
	duration := math.Min(previewSeconds, req.Window)
	defer os.Remove(req.PalettePath)

	palette := paletteCommand(r.cfg.FFBin, req.VideoPath, req.PalettePath, duration, r.extraArgs)
	out, err := r.run(ctx, palette, 0, nil)
	if err != nil {
		return out, fmt.Errorf("%w: palette pass: %v", ErrPreviewFailed, err)
	}

	gif := previewCommand(r.cfg.FFBin, req.VideoPath, req.PalettePath, req.OutputPath, duration, r.extraArgs)
	out, err = r.run(ctx, gif, 0, nil)
	if err != nil {
		os.Remove(req.OutputPath)
		return out, fmt.Errorf("%w: encode pass: %v", ErrPreviewFailed, err)
	}
	return out, nil
}

// Encode burns the subtitles into the video over exactly the reconciled
// processing window, reporting progress as a raw percentage of that window.
// Returns the captured tool output for diagnostics.
func (r *Runner) Encode(ctx context.Context, req EncodeRequest, onProgress func(percent float64)) (string, error) {
	cmd := encodeCommand(r.cfg.FFBin, r.cfg.FontName, req, r.extraArgs)
	out, err := r.run(ctx, cmd, req.Plan.Window, onProgress)
	if err != nil {
		os.Remove(req.OutputPath)
		return out, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	return out, nil
}

// run executes a command, scanning stderr for progress markers while
// capturing all output for the error path.
func (r *Runner) run(ctx context.Context, cmd Command, window float64, onProgress func(float64)) (string, error) {
	runCtx := ctx
	if r.cfg.FFTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.FFTimeout)
		defer cancel()
	}

	c := exec.CommandContext(runCtx, cmd.Program, cmd.Args...)

	// Stdout gets its own buffer: exec copies it on an internal goroutine,
	// which must not share a writer with the stderr tee below.
	var stdoutBuf, stderrBuf bytes.Buffer
	c.Stdout = &stdoutBuf
	stderr, err := c.StderrPipe()
	if err != nil {
		return "", err
	}

	log.WithField("command", cmd.String()).Debug("executing ffmpeg")

	if err := c.Start(); err != nil {
		return "", err
	}

	// Progress markers arrive on stderr; tee them into the diagnostic buffer
	// while scanning.
	scanProgress(io.TeeReader(stderr, &stderrBuf), window, onProgress)

	waitErr := c.Wait()
	output := stderrBuf.String() + stdoutBuf.String()
	if waitErr != nil {
		return output, fmt.Errorf("%v: %s", waitErr, tail(output, 500))
	}
	return output, nil
}

// CheckResources verifies that the host has enough headroom to start a job.
func (r *Runner) CheckResources() error {
	// CPU
	p, err := cpu.Percent(time.Second, false)
	if err != nil {
		log.Warnf("could not get CPU usage: %v", err)
	} else if len(p) > 0 && p[0] > (100.0-r.cfg.ThrottleCPU) {
		return fmt.Errorf("not enough idle CPU. Current usage: %.2f%%, Idle threshold: %.2f%%", p[0], r.cfg.ThrottleCPU)
	}

	// Memory
	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Warnf("could not get memory usage: %v", err)
	} else if vm.Available < uint64(r.cfg.ThrottleFreeMem) {
		return fmt.Errorf("not enough free memory. Available: %d, Required: %d", vm.Available, r.cfg.ThrottleFreeMem)
	}

	// Disk
	d, err := disk.Usage(r.workDir)
	if err != nil {
		log.Warnf("could not get disk usage for %s: %v", r.workDir, err)
	} else if d.Free < uint64(r.cfg.ThrottleFreeDisk) {
		return fmt.Errorf("not enough free disk space. Available: %d, Required: %d", d.Free, r.cfg.ThrottleFreeDisk)
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
