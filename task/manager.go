// captioner/task/manager.go
package task

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"captioner/config"
	"captioner/ffmpeg"
	"captioner/probe"
	"captioner/storage"
	"captioner/subtitle"

	"github.com/lithammer/shortuuid/v4"
	log "github.com/sirupsen/logrus"
)

// Progress checkpoints per pipeline stage. The final encode owns the 55-95
// band; the tail is reserved for cleanup.
const (
	progressParsed    = 10
	progressProbed    = 20
	progressSubtitles = 25
	progressPreview   = 30
	encodeBandStart   = 55
	encodeBandEnd     = 95
)

type MediaProber interface {
	Probe(ctx context.Context, videoPath string) (probe.MediaInfo, error)
}

type MediaRunner interface {
	CheckResources() error
	GeneratePreview(ctx context.Context, req ffmpeg.PreviewRequest) (logOutput string, err error)
	Encode(ctx context.Context, req ffmpeg.EncodeRequest, onProgress func(percent float64)) (logOutput string, err error)
}

type Manager struct {
	cfg            *config.Config
	tracker        *Tracker
	store          *storage.Store
	prober         MediaProber
	runner         MediaRunner
	jobQueue       chan *Job
	concurrencySem chan struct{}
}

func NewManager(cfg *config.Config, store *storage.Store, prober MediaProber, runner MediaRunner) (*Manager, error) {
	m := &Manager{
		cfg:            cfg,
		tracker:        NewTracker(),
		store:          store,
		prober:         prober,
		runner:         runner,
		jobQueue:       make(chan *Job, 100),
		concurrencySem: make(chan struct{}, cfg.MaxConcurrency),
	}
	return m, nil
}

func (m *Manager) Start(ctx context.Context) {
	log.Infof("Job manager started. Concurrency limit: %d", m.cfg.MaxConcurrency)
	go m.sweepLoop(ctx)
	go m.workerLoop(ctx)
}

// workerLoop pulls jobs from the queue and processes them
func (m *Manager) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Info("Worker loop shutting down.")
			return
		case job := <-m.jobQueue:
			// Wait for a free processing slot
			m.concurrencySem <- struct{}{}
			go func(j *Job) {
				defer func() { <-m.concurrencySem }() // Release slot
				m.processJob(ctx, j)
			}(job)
		}
	}
}

// sweepLoop periodically removes old output files
func (m *Manager) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.OutputLocalLifetime / 4) // Check 4 times per lifetime
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Sweep loop shutting down.")
			return
		case <-ticker.C:
			m.store.Sweep(m.cfg.OutputLocalLifetime)
		}
	}
}

// SubmitRequest carries an already-validated submission: parsed cues,
// clamped options, and the on-disk upload paths.
type SubmitRequest struct {
	Cues       []subtitle.Cue
	Options    subtitle.Options
	ScriptPath string
	VideoPath  string
}

// Submit registers the job at 0% and enqueues background processing. The
// registry entry exists before this returns, so an immediate poll never
// misses it.
func (m *Manager) Submit(req SubmitRequest) (*Job, error) {
	if len(req.Cues) == 0 {
		return nil, subtitle.ErrEmptyScript
	}
	if req.VideoPath == "" {
		return nil, errors.New("missing video path")
	}

	j := &Job{
		ID:         fmt.Sprintf("%s_%d", shortuuid.New(), time.Now().Unix()),
		Status:     StatusCreated,
		Progress:   0,
		Message:    "queued",
		CreatedAt:  time.Now(),
		Cues:       req.Cues,
		Options:    req.Options,
		ScriptPath: req.ScriptPath,
		VideoPath:  req.VideoPath,
	}

	m.tracker.Put(j)
	m.jobQueue <- j
	log.WithField("job", j.ID).Info("job submitted to queue")
	return j, nil
}

func (m *Manager) Get(id string) (*Job, bool) {
	return m.tracker.Get(id)
}

func (m *Manager) List() []*Job {
	return m.tracker.List()
}

// ResolveOutput maps an output filename onto its on-disk path for download.
func (m *Manager) ResolveOutput(filename string) (string, error) {
	return m.store.ResolveOutput(filename)
}

// processJob runs the full pipeline for one job: probe, write subtitles,
// preview, encode, cleanup. Stages are strictly sequential; every hard
// failure lands in fail(), which records the error and deletes intermediates.
func (m *Manager) processJob(ctx context.Context, job *Job) {
	logger := log.WithField("job", job.ID)
	logger.Info("processing job")

	subtitlePath := m.store.SubtitlePath(job.ID)

	if err := m.runner.CheckResources(); err != nil {
		m.fail(job, subtitlePath, "insufficient system resources", err, "")
		return
	}

	// Cues were parsed synchronously at submission.
	m.tracker.SetProgress(job.ID, progressParsed, "script parsed")

	info, err := m.prober.Probe(ctx, job.VideoPath)
	if err != nil {
		m.fail(job, subtitlePath, "could not analyze video", err, "")
		return
	}
	m.tracker.SetProgress(job.ID, progressProbed, "video analyzed")

	plan := subtitle.Reconcile(job.Cues, info.Duration, info.Width, info.Height)
	logger.WithFields(log.Fields{
		"policy": plan.Policy,
		"window": plan.Window,
	}).Info("processing window reconciled")

	if err := os.WriteFile(subtitlePath, []byte(subtitle.FormatSRT(plan.Cues)), 0o644); err != nil {
		m.fail(job, subtitlePath, "could not write subtitle file", err, "")
		return
	}
	m.tracker.SetProgress(job.ID, progressSubtitles, "subtitles written")

	m.tracker.SetProgress(job.ID, progressPreview, "generating preview")
	previewOut, err := m.runner.GeneratePreview(ctx, ffmpeg.PreviewRequest{
		VideoPath:   job.VideoPath,
		PalettePath: m.store.PalettePath(job.ID),
		OutputPath:  m.store.PreviewPath(job.ID),
		Window:      plan.Window,
	})
	if err != nil {
		m.fail(job, subtitlePath, "preview generation failed", err, previewOut)
		return
	}
	m.tracker.SetProgress(job.ID, encodeBandStart, "preview ready")

	encodeOut, err := m.runner.Encode(ctx, ffmpeg.EncodeRequest{
		VideoPath:    job.VideoPath,
		SubtitlePath: subtitlePath,
		OutputPath:   m.store.OutputPath(job.ID),
		Plan:         plan,
		Options:      job.Options,
	}, func(percent float64) {
		scaled := encodeBandStart + int(percent*float64(encodeBandEnd-encodeBandStart)/100)
		m.tracker.SetProgress(job.ID, scaled, "encoding captioned video")
	})
	if err != nil {
		m.fail(job, subtitlePath, "final encode failed", err, encodeOut)
		return
	}

	m.tracker.SetProgress(job.ID, encodeBandEnd, "cleaning up")
	m.removeIntermediates(job, subtitlePath)

	m.tracker.Complete(job.ID, &Result{
		VideoFile:   filepath.Base(m.store.OutputPath(job.ID)),
		PreviewFile: filepath.Base(m.store.PreviewPath(job.ID)),
		CueCount:    len(plan.Cues),
		Duration:    plan.Window,
	})
	m.retireAfter(job.ID, m.cfg.SuccessRetention)
	logger.Info("job completed")
}

// fail records the terminal error, deletes whatever intermediates exist, and
// schedules retirement on the shorter failure window.
func (m *Manager) fail(job *Job, subtitlePath, message string, err error, detail string) {
	log.WithField("job", job.ID).WithError(err).Error(message)
	m.tracker.Fail(job.ID, fmt.Sprintf("%s: %v", message, err), detail)
	m.removeIntermediates(job, subtitlePath)
	m.retireAfter(job.ID, m.cfg.FailureRetention)
}

// removeIntermediates deletes the uploaded script, uploaded video, and
// generated subtitle file. Deletion is best-effort with retries inside the
// store; it never affects the job outcome.
func (m *Manager) removeIntermediates(job *Job, subtitlePath string) {
	m.store.Remove(job.ScriptPath)
	m.store.Remove(job.VideoPath)
	m.store.Remove(subtitlePath)
}

// retireAfter deletes the registry entry once the retention window passes.
func (m *Manager) retireAfter(id string, after time.Duration) {
	time.AfterFunc(after, func() {
		m.tracker.Retire(id)
		log.WithField("job", id).Info("job retired from registry")
	})
}
