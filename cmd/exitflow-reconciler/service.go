package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mbellotti/exitflow/pkg/reconciler"
)

const shutdownTimeout = 30 * time.Second

// Service runs the reconciler until the process is told to stop.
type Service struct {
	jobs   *reconciler.Reconciler
	logger *slog.Logger
}

// NewService creates a new reconciler service.
func NewService(jobs *reconciler.Reconciler, logger *slog.Logger) *Service {
	return &Service{
		jobs:   jobs,
		logger: logger.With("module", "reconciler_service"),
	}
}

// Start runs the scheduler and blocks until a shutdown signal or context
// cancellation, then stops it gracefully.
func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	err := s.jobs.Start(runCtx)
	if err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-signals:
		s.logger.Info("Received signal, shutting down gracefully...", "signal", sig)
	case <-runCtx.Done():
		s.logger.Info("Context cancelled, shutting down...")
	}

	stopCtx, stopCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer stopCancel()

	return s.jobs.Stop(stopCtx)
}
