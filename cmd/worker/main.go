// Command worker analyzes a batch of statements through the job queue and
// exits once every job has finished.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/dvloznov/statement-ledger/internal/config"
	"github.com/dvloznov/statement-ledger/internal/gcsuploader"
	infraBQ "github.com/dvloznov/statement-ledger/internal/infra/bigquery"
	"github.com/dvloznov/statement-ledger/internal/jobs"
	"github.com/dvloznov/statement-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/notionsync"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

const pollInterval = 200 * time.Millisecond

func main() {
	flags := pflag.NewFlagSet("worker", pflag.ExitOnError)
	cfgFile := flags.String("config", "", "Config file (YAML)")
	sources := flags.StringArray("source", nil, "Statement location (gs:// prefix or local directory); repeatable")
	publish := flags.Bool("publish", false, "Publish each daily rollup to Notion")
	flags.Int("workers", 0, "Concurrent jobs")
	_ = flags.Parse(os.Args[1:])

	loader := config.NewLoader()
	_ = loader.BindFlag(config.KeyQueueWorkers, flags.Lookup("workers"))
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

	all := append(*sources, flags.Args()...)
	if len(all) == 0 {
		log.Fatal().Msg("No sources given (--source or positional arguments)")
	}

	ctx, cancel := signal.NotifyContext(logger.WithContext(context.Background(), log), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runner := &jobs.StatementRunner{
		Pages:   &gcsuploader.LocationSource{},
		Options: []pipeline.Option{pipeline.WithConcurrency(cfg.PageConcurrency)},
	}

	if needsGCS(all) {
		storage, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer storage.Close()
		runner.Pages = &gcsuploader.LocationSource{Storage: storage}
	}

	if cfg.BigQueryEnabled() {
		repo, err := infraBQ.NewBigQueryRunRepository(ctx, cfg.GCPProject, cfg.BQDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
		}
		defer repo.Close()
		runner.Store = repo
		runner.Failures = repo
	}

	if *publish {
		if !cfg.NotionEnabled() {
			log.Fatal().Msg("--publish requires notion.token and notion.database_id")
		}
		client, err := notionsync.NewNotionClient(cfg.NotionToken)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Notion client")
		}
		runner.Publisher = &notionsync.Publisher{Client: client, DatabaseID: cfg.NotionDBID}
	}

	store := inmemory.NewStore()
	queue := inmemory.NewQueue(len(all), store, inmemory.WithWorkers(cfg.QueueWorkers))
	if err := queue.Start(ctx, runner.Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Int("sources", len(all)).Int("workers", cfg.QueueWorkers).Msg("Worker started")

	ids := make([]string, 0, len(all))
	for _, src := range all {
		job := &jobs.AnalyzeStatementJob{Source: src, Publish: *publish}
		if err := queue.PublishAnalyzeStatement(ctx, job); err != nil {
			log.Fatal().Err(err).Str("source", src).Msg("Failed to enqueue job")
		}
		ids = append(ids, job.JobID)
	}

	results := waitForJobs(ctx, store, ids)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	failed := report(log, results)
	log.Info().Int("jobs", len(results)).Int("failed", failed).Msg("Worker exited")
	if failed > 0 || ctx.Err() != nil {
		os.Exit(1)
	}
}

func needsGCS(sources []string) bool {
	for _, s := range sources {
		if strings.HasPrefix(s, "gs://") {
			return true
		}
	}
	return false
}

// waitForJobs polls until every job is completed or failed, or ctx ends.
func waitForJobs(ctx context.Context, store jobs.JobStore, ids []string) []*jobs.AnalyzeStatementJob {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		results := make([]*jobs.AnalyzeStatementJob, 0, len(ids))
		done := true
		for _, id := range ids {
			job, err := store.GetJob(ctx, id)
			if err != nil {
				done = false
				continue
			}
			results = append(results, job)
			if job.Status != jobs.JobStatusCompleted && job.Status != jobs.JobStatusFailed {
				done = false
			}
		}
		if done {
			return results
		}

		select {
		case <-ctx.Done():
			return results
		case <-ticker.C:
		}
	}
}

func report(log zerolog.Logger, results []*jobs.AnalyzeStatementJob) int {
	failed := 0
	for _, job := range results {
		ev := log.Info()
		if job.Status != jobs.JobStatusCompleted {
			failed++
			ev = log.Error().Str("error", job.Error)
		}
		ev.Str("job_id", job.JobID).
			Str("source", job.Source).
			Str("status", string(job.Status)).
			Str("run_id", job.RunID).
			Int("transactions", job.TransactionCount).
			Int("pages_skipped", job.PagesSkipped).
			Int("records_dropped", job.RecordsDropped).
			Msg("Job finished")
	}
	return failed
}
