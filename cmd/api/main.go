package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/dvloznov/statement-ledger/internal/api/handlers"
	"github.com/dvloznov/statement-ledger/internal/config"
	"github.com/dvloznov/statement-ledger/internal/gcsuploader"
	infraBQ "github.com/dvloznov/statement-ledger/internal/infra/bigquery"
	"github.com/dvloznov/statement-ledger/internal/jobs"
	"github.com/dvloznov/statement-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/notionsync"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

func main() {
	flags := pflag.NewFlagSet("api", pflag.ExitOnError)
	cfgFile := flags.String("config", "", "Config file (YAML)")
	flags.Int("port", 0, "HTTP server port")
	flags.String("bucket", "", "GCS bucket for uploaded page texts")
	_ = flags.Parse(os.Args[1:])

	loader := config.NewLoader()
	_ = loader.BindFlag(config.KeyPort, flags.Lookup("port"))
	_ = loader.BindFlag(config.KeyGCSBucket, flags.Lookup("bucket"))
	cfg, err := loader.Load(*cfgFile, ".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.NewWithSettings(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := logger.WithContext(context.Background(), log)
	opts := []pipeline.Option{pipeline.WithConcurrency(cfg.PageConcurrency)}

	deps := handlers.Deps{Log: log, RunOptions: opts}

	// GCS backs both page uploads and the worker's page source.
	storage, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer storage.Close()
	deps.Storage = storage
	deps.Bucket = cfg.GCSBucket
	if cfg.GCSBucket == "" {
		log.Warn().Msg("No GCS bucket configured - page uploads will be disabled")
	}

	runner := &jobs.StatementRunner{
		Pages:   &gcsuploader.GCSPageSource{Storage: storage},
		Options: opts,
	}

	if cfg.BigQueryEnabled() {
		repo, err := infraBQ.NewBigQueryRunRepository(ctx, cfg.GCPProject, cfg.BQDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
		}
		defer repo.Close()
		runner.Store = repo
		runner.Failures = repo
		deps.Runs = repo
	} else {
		log.Warn().Msg("BigQuery not configured - runs will not be persisted")
	}

	if cfg.NotionEnabled() {
		client, err := notionsync.NewNotionClient(cfg.NotionToken)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Notion client")
		}
		runner.Publisher = &notionsync.Publisher{Client: client, DatabaseID: cfg.NotionDBID}
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.QueueBuffer, jobStore, inmemory.WithWorkers(cfg.QueueWorkers))
	deps.Publisher = jobQueue
	deps.JobStore = jobStore

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Int("workers", cfg.QueueWorkers).Msg("Starting job workers")
	if err := jobQueue.Start(workerCtx, runner.Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	addr := ":" + strconv.Itoa(cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handlers.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight jobs finish before cancelling them.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
