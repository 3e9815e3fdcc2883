package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"specbuddy/internal/api"
	"specbuddy/internal/config"
	"specbuddy/internal/engine"
	"specbuddy/internal/llm"
	"specbuddy/internal/session"
	"specbuddy/internal/telemetry"
	"specbuddy/internal/unsplash"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real env vars win either way.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := telemetry.InitLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := context.Background()
	tracer, meter, cleanup, err := telemetry.InitTelemetry(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer cleanup()

	tel := llm.Telemetry{Tracer: tracer, Meter: meter, Logger: logger}

	var client llm.Client
	switch cfg.Backend {
	case config.BackendOllama:
		client = llm.NewOllamaClient(cfg.OllamaModel, tel)
	case config.BackendAnthropic:
		client = llm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.MaxTokens, tel)
	default:
		client = llm.NewGroqClient(cfg.GroqAPIKey, cfg.GroqModel, cfg.Temperature, cfg.MaxTokens, tel)
	}
	logger.Info("completion backend ready", "backend", cfg.Backend)

	images := unsplash.NewClient(cfg.UnsplashAccessKey, tracer, logger)
	if !images.Enabled() {
		logger.Warn("UNSPLASH_ACCESS_KEY not set, image resolution disabled")
	}

	var archive *session.Archive
	if cfg.ArchiveDB != "" {
		db, err := telemetry.InitArchiveDB(cfg.ArchiveDB)
		if err != nil {
			return fmt.Errorf("failed to initialize archive: %w", err)
		}
		defer db.Close()
		archive = session.NewArchive(db, logger)
		logger.Info("conversation archive enabled", "path", cfg.ArchiveDB)
	}

	store := session.NewMemoryStore()
	stop := make(chan struct{})
	defer close(stop)
	store.StartJanitor(cfg.SessionTTL, logger, stop)

	eng := engine.New(store, client, images, archive, engine.Strategy(cfg.SummaryStyle), tracer, logger)
	handler := api.NewServer(eng, cfg.AllowedOrigin, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "port", cfg.Port)
		fmt.Println("SpecBuddy API listening on port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}

	return nil
}
