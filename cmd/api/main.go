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
	_ "time/tzdata"

	"github.com/gin-gonic/gin"

	"github.com/BruksfildServices01/consult-scheduler/internal/app"
	"github.com/BruksfildServices01/consult-scheduler/internal/config"
	"github.com/BruksfildServices01/consult-scheduler/internal/logging"
	"github.com/BruksfildServices01/consult-scheduler/internal/routes"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(cfg.AppEnv, cfg.LogLevel)

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Timers live in memory only: rebuild them before taking traffic.
	summary, err := a.Reconciler.ReconcileAll(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	logger.Info().
		Int("expired", summary.Expired).
		Int("scheduled", summary.Scheduled).
		Int("failed", summary.Failed).
		Msg("scheduler state rebuilt")

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	routes.RegisterRoutes(r, a)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr()).Msg("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
