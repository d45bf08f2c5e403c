package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"goflare.io/pace"
	"goflare.io/pace/internal/api"
	"goflare.io/pace/internal/config"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger, err := newLogger(config.LogLevel())
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger); err != nil {
		logger.Fatal("Server exited", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

func run(logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := append(pace.FromEnv(), pace.WithLogger(logger))
	svc, err := pace.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("initialize pace: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close pace", zap.Error(err))
		}
	}()

	cfg := svc.Config()
	if err := svc.StartPrewarm(ctx); err != nil {
		return fmt.Errorf("start prewarm: %w", err)
	}

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: api.NewRouter(svc, api.Options{
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			RequestTimeout: cfg.HTTP.RequestTimeout,
			Logger:         logger,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Pace server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
