// captioner/task/job.go
package task

import (
	"time"

	"captioner/subtitle"
)

type Status string

const (
	StatusCreated   Status = "created"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Result is the final payload of a successful job.
type Result struct {
	VideoFile   string  `json:"videoFile"`
	PreviewFile string  `json:"previewFile"`
	VideoURL    string  `json:"videoUrl,omitempty"`
	PreviewURL  string  `json:"previewUrl,omitempty"`
	CueCount    int     `json:"cueCount"`
	Duration    float64 `json:"durationSeconds"`
}

// Job tracks one script-plus-video captioning request through its lifetime.
// The registry entry is created synchronously at submission and mutated only
// by the job's own background worker until it is retired.
type Job struct {
	ID          string    `json:"id"`
	Status      Status    `json:"status"`
	Progress    int       `json:"progress"` // percent, non-decreasing
	Message     string    `json:"statusMessage"`
	CreatedAt   time.Time `json:"createdAt"`
	CompletedAt time.Time `json:"completedAt,omitempty"`
	Result      *Result   `json:"result,omitempty"`
	Error       string    `json:"error,omitempty"`
	Detail      string    `json:"detail,omitempty"` // captured tool diagnostics

	Cues       []subtitle.Cue   `json:"-"`
	Options    subtitle.Options `json:"-"`
	ScriptPath string           `json:"-"`
	VideoPath  string           `json:"-"`
}
