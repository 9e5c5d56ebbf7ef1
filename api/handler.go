// captioner/api/handler.go
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"captioner/config"
	"captioner/storage"
	"captioner/subtitle"
	"captioner/task"

	"github.com/gin-gonic/gin"
	"github.com/lithammer/shortuuid/v4"
)

type Handler struct {
	manager *task.Manager
	store   *storage.Store
	cfg     *config.Config
}

func NewHandler(m *task.Manager, store *storage.Store, cfg *config.Config) *Handler {
	return &Handler{
		manager: m,
		store:   store,
		cfg:     cfg,
	}
}

// handleCreateJob accepts a multipart submission: a script (text field or
// file part), a video file, and optional style fields. Validation happens
// before anything touches disk, so a rejected submission leaves no files
// behind.
func (h *Handler) handleCreateJob(c *gin.Context) {
	script, err := h.readScript(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := subtitle.ParseOptions(map[string]string{
		"baseDuration": c.PostForm("baseDuration"),
		"perWord":      c.PostForm("perWord"),
		"fontColor":    c.PostForm("fontColor"),
		"fontWeight":   c.PostForm("fontWeight"),
		"fontSize":     c.PostForm("fontSize"),
		"position":     c.PostForm("position"),
	})

	cues, err := subtitle.Parse(script, opts)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "script contains no non-blank lines"})
		return
	}

	video, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "video file is required"})
		return
	}
	if video.Size > h.cfg.MaxInputSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("video exceeds the %d byte upload limit", h.cfg.MaxInputSize)})
		return
	}

	uploadID := shortuuid.New()
	scriptPath := h.store.ScriptPath(uploadID)
	videoPath := h.store.VideoPath(uploadID, videoExt(video.Filename))

	if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store script", "details": err.Error()})
		return
	}
	if err := c.SaveUploadedFile(video, videoPath); err != nil {
		h.store.Remove(scriptPath)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store video", "details": err.Error()})
		return
	}

	job, err := h.manager.Submit(task.SubmitRequest{
		Cues:       cues,
		Options:    opts,
		ScriptPath: scriptPath,
		VideoPath:  videoPath,
	})
	if err != nil {
		h.store.Remove(scriptPath)
		h.store.Remove(videoPath)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job", "details": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"jobId": job.ID})
}

// readScript pulls the script text from either the form field or a file part.
// A present-but-blank field is returned as is so it fails script validation,
// not the missing-field check.
func (h *Handler) readScript(c *gin.Context) (string, error) {
	if text, ok := c.GetPostForm("script"); ok {
		return text, nil
	}

	header, err := c.FormFile("script")
	if err != nil {
		return "", errors.New("script is required")
	}
	f, err := header.Open()
	if err != nil {
		return "", errors.New("could not read script upload")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.cfg.MaxInputSize+1))
	if err != nil {
		return "", errors.New("could not read script upload")
	}
	if int64(len(data)) > h.cfg.MaxInputSize {
		return "", fmt.Errorf("script exceeds the %d byte upload limit", h.cfg.MaxInputSize)
	}
	return string(data), nil
}

// handleGetProgress serves the polling surface. Unknown and retired ids get a
// distinct 404 rather than a fake "0%" shape, so clients can tell a finished
// retired job from one that never started.
func (h *Handler) handleGetProgress(c *gin.Context) {
	job, found := h.manager.Get(c.Param("jobId"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"progress":      job.Progress,
		"statusMessage": job.Message,
	})
}

// handleGetResult serves the terminal payload: the result on success, the
// error payload on failure, 404 while the job is still running.
func (h *Handler) handleGetResult(c *gin.Context) {
	job, found := h.manager.Get(c.Param("jobId"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	switch job.Status {
	case task.StatusSucceeded:
		result := *job.Result
		result.VideoURL = h.buildDownloadURL(c, result.VideoFile)
		result.PreviewURL = h.buildDownloadURL(c, result.PreviewFile)
		c.JSON(http.StatusOK, gin.H{"status": job.Status, "result": result})
	case task.StatusFailed:
		c.JSON(http.StatusOK, gin.H{"status": job.Status, "error": job.Error, "detail": job.Detail})
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "result not ready"})
	}
}

// handleListJobs lists all tracked jobs.
func (h *Handler) handleListJobs(c *gin.Context) {
	jobs := h.manager.List()
	if jobs == nil {
		jobs = []*task.Job{}
	}
	c.JSON(http.StatusOK, jobs)
}

// handleGetFile serves a processed output or preview file.
func (h *Handler) handleGetFile(c *gin.Context) {
	path, err := h.manager.ResolveOutput(c.Param("filename"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.File(path)
}

// buildDownloadURL constructs the full URL for an output filename.
func (h *Handler) buildDownloadURL(c *gin.Context, filename string) string {
	baseURL := h.cfg.BaseURL
	if baseURL == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, c.Request.Host)
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	return fmt.Sprintf("%s/api/v1/files/%s", baseURL, filename)
}

func videoExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if ext == "" {
		ext = ".mp4"
	}
	return ext
}
