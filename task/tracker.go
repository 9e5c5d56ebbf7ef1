// captioner/task/tracker.go
package task

import (
	"sync"
	"time"
)

// Tracker is the process-wide job registry. Entries are replaced atomically
// as whole snapshots; polls never observe a half-written update. Each job has
// exactly one writer (its background worker), so load-copy-store cannot lose
// writes.
type Tracker struct {
	jobs sync.Map // job id -> *Job
}

func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) Put(j *Job) {
	t.jobs.Store(j.ID, j)
}

func (t *Tracker) Get(id string) (*Job, bool) {
	if val, ok := t.jobs.Load(id); ok {
		return val.(*Job), true
	}
	return nil, false
}

func (t *Tracker) List() []*Job {
	var jobs []*Job
	t.jobs.Range(func(_, value interface{}) bool {
		jobs = append(jobs, value.(*Job))
		return true
	})
	return jobs
}

// Retire deletes the entry. A poll after retirement reports not-found, which
// is deliberately distinct from a job still sitting at 0%.
func (t *Tracker) Retire(id string) {
	t.jobs.Delete(id)
}

// SetProgress records stage progress. Regressions are ignored so pollers only
// ever see a non-decreasing percentage.
func (t *Tracker) SetProgress(id string, percent int, message string) {
	t.mutate(id, func(j *Job) {
		if percent > j.Progress {
			j.Progress = percent
		}
		j.Message = message
		if j.Status == StatusCreated {
			j.Status = StatusRunning
		}
	})
}

// Complete marks the job succeeded with its final payload.
func (t *Tracker) Complete(id string, result *Result) {
	t.mutate(id, func(j *Job) {
		j.Status = StatusSucceeded
		j.Progress = 100
		j.Message = "completed"
		j.Result = result
		j.CompletedAt = time.Now()
	})
}

// Fail marks the job failed, keeping the captured diagnostic output.
func (t *Tracker) Fail(id, message, detail string) {
	t.mutate(id, func(j *Job) {
		j.Status = StatusFailed
		j.Message = "failed"
		j.Error = message
		j.Detail = detail
		j.CompletedAt = time.Now()
	})
}

// mutate applies fn to a copy of the entry and swaps the copy in.
func (t *Tracker) mutate(id string, fn func(*Job)) {
	val, ok := t.jobs.Load(id)
	if !ok {
		return
	}
	updated := *(val.(*Job))
	fn(&updated)
	t.jobs.Store(id, &updated)
}
