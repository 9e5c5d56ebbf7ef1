// captioner/storage/storage.go
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

// Store owns the four role-named directories all transient job files live in.
// Files are named per job, so concurrent jobs never contend for a path.
type Store struct {
	Root         string
	UploadsDir   string
	SubtitlesDir string
	TempDir      string
	OutputsDir   string

	removeRetries int
	removeDelay   time.Duration
}

// New creates the directory layout under root. An empty root falls back to a
// fresh os temp directory, the way a dev instance runs.
func New(root string, removeRetries int, removeDelay time.Duration) (*Store, error) {
	if root == "" {
		dir, err := os.MkdirTemp("", "captioner_")
		if err != nil {
			return nil, fmt.Errorf("could not create storage root: %w", err)
		}
		root = dir
	}

	s := &Store{
		Root:          root,
		UploadsDir:    filepath.Join(root, "uploads"),
		SubtitlesDir:  filepath.Join(root, "subtitles"),
		TempDir:       filepath.Join(root, "temp"),
		OutputsDir:    filepath.Join(root, "outputs"),
		removeRetries: removeRetries,
		removeDelay:   removeDelay,
	}

	for _, dir := range []string{s.UploadsDir, s.SubtitlesDir, s.TempDir, s.OutputsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("could not create %s: %w", dir, err)
		}
	}
	return s, nil
}

func (s *Store) ScriptPath(jobID string) string {
	return filepath.Join(s.UploadsDir, jobID+"_script.txt")
}

func (s *Store) VideoPath(jobID, ext string) string {
	return filepath.Join(s.UploadsDir, jobID+"_video"+ext)
}

func (s *Store) SubtitlePath(jobID string) string {
	return filepath.Join(s.SubtitlesDir, jobID+".srt")
}

func (s *Store) PalettePath(jobID string) string {
	return filepath.Join(s.TempDir, jobID+"_palette.png")
}

func (s *Store) PreviewPath(jobID string) string {
	return filepath.Join(s.OutputsDir, jobID+"_preview.gif")
}

func (s *Store) OutputPath(jobID string) string {
	return filepath.Join(s.OutputsDir, jobID+"_captioned.mp4")
}

// Remove deletes a file with bounded retries, tolerating transient locks
// held by a just-exited external process. Exhausted retries are logged, never
// escalated: a leftover temp file must not fail a finished job.
func (s *Store) Remove(path string) {
	if path == "" {
		return
	}
	attempts := s.removeRetries
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(s.removeDelay)
		}
		err = os.Remove(path)
		if err == nil || os.IsNotExist(err) {
			return
		}
	}
	log.WithError(err).WithField("path", path).Warn("could not remove file after retries")
}

// ResolveOutput maps a bare filename onto the outputs directory, rejecting
// path traversal.
func (s *Store) ResolveOutput(filename string) (string, error) {
	clean := filepath.Base(filename)
	if clean != filename {
		return "", fmt.Errorf("invalid filename")
	}

	fullPath := filepath.Join(s.OutputsDir, clean)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return "", fmt.Errorf("file not found")
	}
	return fullPath, nil
}

// Sweep removes output files older than the given age. Called periodically
// so processed videos and previews do not accumulate forever.
func (s *Store) Sweep(olderThan time.Duration) {
	entries, err := os.ReadDir(s.OutputsDir)
	if err != nil {
		log.WithError(err).Warn("could not read outputs directory for sweep")
		return
	}
	cutoff := time.Now().Add(-olderThan)
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || info.IsDir() {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(s.OutputsDir, entry.Name())
			log.WithField("path", path).Info("sweeping expired output file")
			s.Remove(path)
		}
	}
}
