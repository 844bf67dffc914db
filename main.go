package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"triage_server/config"
	"triage_server/internal/bootstrap"
	"triage_server/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	shutdownTimeout = 30 * time.Second // Maximum time to wait for graceful shutdown
)

func main() {
	// Load .env file if exists (for local development)
	envErr := godotenv.Load()

	mode := flag.String("mode", "all", "Run mode: api, worker, all")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{})
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "triage",
	})
	if envErr != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := bootstrap.NewDependencies(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize dependencies")
	}
	defer cleanup()

	switch *mode {
	case "api":
		runAPI(ctx, deps, log)
	case "worker":
		runWorker(ctx, deps, log)
	case "all":
		w := startWorker(deps, log)
		runAPI(ctx, deps, log)
		stopWorker(w, log)
	default:
		log.Fatal().Str("mode", *mode).Msg("unknown mode")
	}
}

func runAPI(ctx context.Context, deps *bootstrap.Dependencies, log zerolog.Logger) {
	app := bootstrap.NewAPI(deps)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + deps.Config.Port
		log.Info().Str("addr", addr).Msg("starting API server")
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("API server stopped")
		}
		return
	case <-ctx.Done():
	}

	log.Info().Dur("timeout", shutdownTimeout).Msg("shutting down API server")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Error().Err(err).Msg("error shutting down")
		return
	}
	log.Info().Msg("API server shut down gracefully")
}

func runWorker(ctx context.Context, deps *bootstrap.Dependencies, log zerolog.Logger) {
	w := startWorker(deps, log)
	<-ctx.Done()
	stopWorker(w, log)
}

func startWorker(deps *bootstrap.Dependencies, log zerolog.Logger) *bootstrap.Worker {
	w := bootstrap.NewWorker(deps)
	log.Info().Msg("starting worker")
	go w.Start()
	return w
}

func stopWorker(w *bootstrap.Worker, log zerolog.Logger) {
	log.Info().Dur("timeout", shutdownTimeout).Msg("shutting down worker")

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("worker shut down gracefully")
	case <-time.After(shutdownTimeout):
		log.Warn().Msg("worker shutdown timed out, forcing exit")
		os.Exit(1)
	}
}
