package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/zenderock/focus-agency-server/internal/application"
	"github.com/zenderock/focus-agency-server/internal/config"
	"github.com/zenderock/focus-agency-server/internal/jobstore"
)

func main() {
	slog.Info("starting jobstore database migrator")

	startupCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	conf, err := config.LoadConfig(startupCtx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if conf.JobstoreDSN == "" {
		slog.Error("JOBSTORE_DSN is not set; nothing to migrate")
		os.Exit(1)
	}

	retries := conf.DatabaseRetries
	if retries <= 0 {
		retries = 10
	}

	pool, err := application.OpenDBPoolWithRetry(startupCtx, conf.JobstoreDSN, retries)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slog.Info("database pool connection established")

	store := jobstore.New(pool)
	defer store.Close()

	if err := store.Migrate(startupCtx); err != nil {
		slog.Error("failed to run jobstore migrations", "error", err)
		os.Exit(1)
	}

	slog.Info("jobstore migrations completed successfully")
}
