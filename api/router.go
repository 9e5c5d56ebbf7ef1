// captioner/api/router.go
package api

import (
	"captioner/config"
	"captioner/storage"
	"captioner/task"

	"github.com/gin-gonic/gin"
)

func SetupRouter(m *task.Manager, store *storage.Store, cfg *config.Config) *gin.Engine {
	r := gin.Default()
	h := NewHandler(m, store, cfg)

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(cfg))
	{
		v1.POST("/jobs", h.handleCreateJob)
		v1.GET("/jobs", h.handleListJobs)
		v1.GET("/jobs/:jobId/progress", h.handleGetProgress)
		v1.GET("/jobs/:jobId/result", h.handleGetResult)

		// File download endpoint (does not need auth if URLs are unguessable)
		// but we put it here for consistency.
		v1.GET("/files/:filename", h.handleGetFile)
	}
	return r
}
