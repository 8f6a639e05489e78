package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/zenderock/focus-agency-server/cmd/server/internal/web"
	"github.com/zenderock/focus-agency-server/internal/application"
	"github.com/zenderock/focus-agency-server/internal/authz"
	"github.com/zenderock/focus-agency-server/internal/config"
	"github.com/zenderock/focus-agency-server/internal/credential"
	"github.com/zenderock/focus-agency-server/internal/jobstore"
	"github.com/zenderock/focus-agency-server/internal/storage"
	"github.com/zenderock/focus-agency-server/internal/streaming"
	"github.com/zenderock/focus-agency-server/internal/transcode"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting focus agency streaming service")

	conf, err := config.LoadConfig(ctx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	creds := credential.NewService(conf.SecretKey)
	layout := storage.NewLayout(conf.UploadsRoot, conf.OriginalsRoot, conf.HLSRoot, conf.PresentationsRoot)
	gate := authz.NewGate(creds, conf.AllowedOrigins(), conf.DownloadRequireFilename)

	var store *jobstore.Store
	if conf.JobstoreDSN != "" {
		retries := conf.DatabaseRetries
		if retries <= 0 {
			retries = 10
		}
		pool, err := application.OpenDBPoolWithRetry(ctx, conf.JobstoreDSN, retries)
		if err != nil {
			slog.Error("failed to connect to jobstore database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		store = jobstore.New(pool)
		if err := store.Migrate(ctx); err != nil {
			slog.Error("failed to run jobstore migrations", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("JOBSTORE_DSN not set; transcode job status will only be tracked in memory")
	}

	workers := conf.TranscodeWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	orch := transcode.New(transcode.Config{
		HostBaseURL:    conf.HostBaseURL,
		CallbackBearer: conf.CallbackBearer,
		HLSRoot:        conf.HLSRoot,
		Workers:        workers,
		Store:          store,
	})
	orch.Start(ctx)
	defer orch.Stop()

	e := web.NewWebserver(web.Deps{
		Credentials:             creds,
		Gate:                    gate,
		Layout:                  layout,
		Orchestrator:            orch,
		TokenExpiry:             time.Duration(conf.TokenExpiry) * time.Second,
		DownloadRequireFilename: conf.DownloadRequireFilename,
		AllowedOrigins:          conf.AllowedOrigins(),
		UploadDefaults: streaming.UploadDefaults{
			SuccessURL: conf.CallbackDefaultSuccessURL,
			ErrorURL:   conf.CallbackDefaultErrorURL,
		},
	})

	addr := ":" + strconv.Itoa(conf.WebServerPort)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)
	}()

	slog.Info("listening", "addr", addr)
	if err := e.Start(addr); err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return
		}
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
