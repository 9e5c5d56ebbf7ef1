// captioner/main.go
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"captioner/api"
	"captioner/config"
	"captioner/ffmpeg"
	"captioner/probe"
	"captioner/storage"
	"captioner/task"

	log "github.com/sirupsen/logrus"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	setupLogging(cfg)

	// 2. Initialize storage and the external tool wrappers
	store, err := storage.New(cfg.StorageRoot, cfg.CleanupRetries, cfg.CleanupRetryDelay)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	log.Infof("Using storage root: %s", store.Root)

	prober, err := probe.NewProber(cfg.FFProbeBin)
	if err != nil {
		log.Fatalf("Failed to initialize prober: %v", err)
	}

	runner, err := ffmpeg.NewRunner(cfg, store.Root)
	if err != nil {
		log.Fatalf("Failed to initialize ffmpeg runner: %v", err)
	}

	// 3. Initialize the job manager and inject the collaborators
	manager, err := task.NewManager(cfg, store, prober, runner)
	if err != nil {
		log.Fatalf("Failed to initialize job manager: %v", err)
	}

	// 4. Set up router and server
	router := api.SetupRouter(manager, store, cfg)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// 5. Start background services and HTTP server
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager.Start(ctx)

	go func() {
		log.Infof("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s", err)
		}
	}()

	// 6. Wait for interrupt signal for graceful shutdown
	<-ctx.Done()

	// Restore default behavior on the interrupt signal and notify user of shutdown.
	stop()
	log.Info("Shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the requests it is currently handling
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exiting")
}

func setupLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if cfg.LogJSON {
		log.SetFormatter(&log.JSONFormatter{})
	}
}
