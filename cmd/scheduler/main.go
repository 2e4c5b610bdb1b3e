package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oakmoss-dev/enrichqueue/internal/config"
	"github.com/oakmoss-dev/enrichqueue/internal/cron"
	"github.com/oakmoss-dev/enrichqueue/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()

	shutdown, err := telemetry.Init(ctx, cfg, "enrichqueue-scheduler")
	if err != nil {
		logger.Error("tracing init error", "err", err)
		os.Exit(1)
	}
	defer func() { _ = shutdown(context.Background()) }()

	invoker := cron.NewInvoker(cfg.InvokeBaseURL, cfg.InvokeBearer, logger)

	stop, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fired := invoker.Tick(stop, cron.DefaultSchedule, time.Now().UTC())
			if len(fired) > 0 {
				logger.Info("schedule tick", "fired", fired)
			}
		case <-stop.Done():
			return
		}
	}
}
