package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-ledger/internal/gcsuploader"
	infraBQ "github.com/dvloznov/statement-ledger/internal/infra/bigquery"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
	"github.com/dvloznov/statement-ledger/internal/report"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Build the ledger, summary and daily rollup from page texts",
	Long: `Loads transaction_page_N.txt files from a local directory or a gs:// prefix,
runs parse, normalize and validate over every page and writes
all_transactions.csv, financial_report.csv and daily_summary.csv.`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	addSourceFlags(analyzeCmd)
	analyzeCmd.Flags().String("out", ".", "Directory for the CSV exports")
	analyzeCmd.Flags().Bool("bigquery", false, "Persist the run to BigQuery")
	analyzeCmd.Flags().String("project", "", "GCP project ID")
	analyzeCmd.Flags().String("dataset", "", "BigQuery dataset ID")
	analyzeCmd.Flags().String("upload-bucket", "", "Also upload the CSV exports to this GCS bucket")
}

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("dir", "", "Local directory of page texts")
	cmd.Flags().String("gcs-uri", "", "gs:// prefix holding page texts")
	cmd.Flags().Int("concurrency", 0, "Pages processed concurrently")
	cmd.MarkFlagsMutuallyExclusive("dir", "gcs-uri")
	cmd.MarkFlagsOneRequired("dir", "gcs-uri")
}

// sourceFromFlags returns the location named by --dir or --gcs-uri.
func sourceFromFlags(cmd *cobra.Command) (string, error) {
	dir, _ := cmd.Flags().GetString("dir")
	gcsURI, _ := cmd.Flags().GetString("gcs-uri")
	return resolveSource(dir, gcsURI)
}

func resolveSource(dir, gcsURI string) (string, error) {
	switch {
	case dir != "" && gcsURI != "":
		return "", errors.New("--dir and --gcs-uri are mutually exclusive")
	case dir != "":
		return dir, nil
	case gcsURI != "":
		if _, _, err := gcsuploader.ParseGCSURI(gcsURI); err != nil {
			return "", err
		}
		if !strings.HasSuffix(gcsURI, "/") {
			gcsURI += "/"
		}
		return gcsURI, nil
	default:
		return "", errors.New("one of --dir or --gcs-uri is required")
	}
}

// analyzeSource runs load, analyze and (when store is non-nil) persist.
func analyzeSource(ctx context.Context, source string, storage gcsuploader.StorageService, store pipeline.ResultStore) (*pipeline.PipelineState, error) {
	steps := []pipeline.PipelineStep{
		&pipeline.LoadPagesStep{Source: &gcsuploader.LocationSource{Storage: storage}},
		&pipeline.AnalyzeStep{Options: []pipeline.Option{pipeline.WithConcurrency(cfg.PageConcurrency)}},
	}
	if store != nil {
		steps = append(steps, &pipeline.PersistStep{Store: store})
	}

	state := pipeline.NewPipelineState(source)
	log.Info().Str("source", source).Str("run_id", state.RunID).Msg("Analyzing statement")

	if err := pipeline.NewPipeline(steps...).Execute(ctx, state); err != nil {
		return state, err
	}
	return state, nil
}

// storageFor opens a GCS client when any of the locations needs one.
func storageFor(ctx context.Context, needed bool) (*gcsuploader.GCSStorageService, error) {
	if !needed {
		return nil, nil
	}
	return gcsuploader.NewGCSStorageService(ctx)
}

// storageOrNil keeps a nil client from becoming a non-nil interface.
func storageOrNil(s *gcsuploader.GCSStorageService) gcsuploader.StorageService {
	if s == nil {
		return nil
	}
	return s
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	source, err := sourceFromFlags(cmd)
	if err != nil {
		return err
	}
	outDir, _ := cmd.Flags().GetString("out")
	useBQ, _ := cmd.Flags().GetBool("bigquery")
	uploadBucket, _ := cmd.Flags().GetString("upload-bucket")

	gcs, err := storageFor(ctx, strings.HasPrefix(source, "gs://") || uploadBucket != "")
	if err != nil {
		return err
	}
	if gcs != nil {
		defer gcs.Close()
	}
	storage := storageOrNil(gcs)

	var repo *infraBQ.BigQueryRunRepository
	var store pipeline.ResultStore
	if useBQ {
		if !cfg.BigQueryEnabled() {
			return errors.New("--bigquery requires a GCP project and dataset")
		}
		repo, err = infraBQ.NewBigQueryRunRepository(ctx, cfg.GCPProject, cfg.BQDataset)
		if err != nil {
			return err
		}
		defer repo.Close()
		store = repo
	}

	state, err := analyzeSource(ctx, source, storage, store)
	if err != nil {
		if repo != nil {
			if ferr := repo.RecordFailure(ctx, state.Record(), err); ferr != nil {
				log.Warn().Err(ferr).Msg("Failed to record failed run")
			}
		}
		return err
	}
	res := state.Result

	paths, err := report.WriteFiles(outDir, report.Bundle{Ledger: res.Ledger, Summary: res.Summary, Daily: res.Daily})
	if err != nil {
		return err
	}
	for _, p := range paths {
		log.Info().Str("path", p).Msg("Wrote export")
	}

	if uploadBucket != "" {
		uris, err := gcsuploader.UploadExports(ctx, storage, uploadBucket, "exports/"+state.RunID, paths)
		if err != nil {
			return err
		}
		for _, u := range uris {
			log.Info().Str("uri", u).Msg("Uploaded export")
		}
	}

	return printResult(cmd.OutOrStdout(), state.RunID, res)
}

func printResult(w io.Writer, runID string, res *pipeline.Result) error {
	fmt.Fprintf(w, "Run %s: %d page(s), %d record(s), %d transaction(s)\n\n",
		runID, res.PagesProcessed, res.RecordsSeen, res.Ledger.Len())
	if err := report.PrintSummary(w, res.Summary); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nErrors: %s\n", res.Errors.Summary())
	return nil
}

