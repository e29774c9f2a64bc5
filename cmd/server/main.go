package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/darshan-hindocha/plexe-technical/internal/config"
	"github.com/darshan-hindocha/plexe-technical/internal/db"
	"github.com/darshan-hindocha/plexe-technical/internal/handlers"
	"github.com/darshan-hindocha/plexe-technical/internal/platform/logger"
	"github.com/darshan-hindocha/plexe-technical/internal/platform/shutdown"
	"github.com/darshan-hindocha/plexe-technical/internal/repos"
	"github.com/darshan-hindocha/plexe-technical/internal/server"
	"github.com/darshan-hindocha/plexe-technical/internal/services"
	"github.com/darshan-hindocha/plexe-technical/internal/storage"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading configuration...")
	cfg := config.Load(log)

	// DB
	dbService, err := db.New(cfg.DB, log)
	if err != nil {
		log.Error("DB init failed", "error", err)
		os.Exit(1)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		log.Error("DB auto migration failed", "error", err)
		os.Exit(1)
	}
	gdb := dbService.DB()

	// Artifact store
	blobs, err := storage.New(cfg.Storage, log)
	if err != nil {
		log.Error("Could not init artifact store", "error", err)
		os.Exit(1)
	}

	// Repos
	log.Info("Setting up Repos...")
	modelRecordRepo := repos.NewModelRecordRepo(gdb, log)

	// Services
	log.Info("Setting up Services...")
	registryService := services.NewRegistryService(gdb, log, modelRecordRepo, blobs)
	predictorService := services.NewPredictorService(log, registryService, blobs, nil)

	// Handlers
	modelHandler := handlers.NewModelHandler(log, registryService)
	predictHandler := handlers.NewPredictHandler(log, predictorService)
	statusHandler := handlers.NewStatusHandler(registryService)

	router := server.NewRouter(server.RouterConfig{
		ModelHandler:   modelHandler,
		PredictHandler: predictHandler,
		StatusHandler:  statusHandler,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
	})

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", cfg.HTTP.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server exited", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Info("shutting down", "timeout", cfg.HTTP.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
			os.Exit(1)
		}
	}
	log.Info("server stopped")
}
