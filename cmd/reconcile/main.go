// Command reconcile applies every overdue end transition once and exits.
// Run it from cron when the API is down for long stretches.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/BruksfildServices01/consult-scheduler/internal/app"
	"github.com/BruksfildServices01/consult-scheduler/internal/config"
	"github.com/BruksfildServices01/consult-scheduler/internal/logging"
)

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

	logger := logging.New(cfg.AppEnv, cfg.LogLevel).With().Str("job", "reconcile").Logger()

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := a.Reconciler.ExpireStale(ctx)
	if err != nil {
		return err
	}

	logger.Info().
		Int("expired", summary.Expired).
		Int("failed", summary.Failed).
		Msg("stale appointments processed")

	if summary.Failed > 0 {
		return fmt.Errorf("%d appointments could not be expired", summary.Failed)
	}
	return nil
}
