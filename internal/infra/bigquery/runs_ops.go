package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

// Table names in the ledger dataset.
const (
	analysisRunsTable       = "analysis_runs"
	ledgerTransactionsTable = "ledger_transactions"
	dailyRollupsTable       = "daily_rollups"
	runSummariesTable       = "run_summaries"
	pageOutputsTable        = "page_outputs"
)

// InsertRowsWithClient streams rows into projectID.datasetID.table.
func InsertRowsWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID, table string, rows interface{}) error {
	inserter := client.DatasetInProject(projectID, datasetID).Table(table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertRows: inserting into %s: %w", table, err)
	}
	return nil
}

// SaveRunWithClient writes every table for one finished run. The run row is
// written last so a listed run always has its detail rows.
func SaveRunWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, run pipeline.RunRecord, res *pipeline.Result) error {
	log := logger.FromContext(ctx)
	now := time.Now().UTC()

	runRow, err := NewAnalysisRunRow(run, res)
	if err != nil {
		return fmt.Errorf("SaveRun: %w", err)
	}

	if rows := PageOutputRows(run.RunID, res, now); len(rows) > 0 {
		if err := InsertRowsWithClient(ctx, client, projectID, datasetID, pageOutputsTable, rows); err != nil {
			return fmt.Errorf("SaveRun: %w", err)
		}
	}

	if rows := LedgerTransactionRows(run.RunID, res.Ledger, now); len(rows) > 0 {
		if err := InsertRowsWithClient(ctx, client, projectID, datasetID, ledgerTransactionsTable, rows); err != nil {
			return fmt.Errorf("SaveRun: %w", err)
		}
	}

	if rows := DailyRollupRows(run.RunID, res.Daily); len(rows) > 0 {
		if err := InsertRowsWithClient(ctx, client, projectID, datasetID, dailyRollupsTable, rows); err != nil {
			return fmt.Errorf("SaveRun: %w", err)
		}
	}

	if err := InsertRowsWithClient(ctx, client, projectID, datasetID, runSummariesTable, NewRunSummaryRow(run.RunID, res.Summary)); err != nil {
		return fmt.Errorf("SaveRun: %w", err)
	}

	if err := InsertRowsWithClient(ctx, client, projectID, datasetID, analysisRunsTable, runRow); err != nil {
		return fmt.Errorf("SaveRun: %w", err)
	}

	log.Info().
		Str("run_id", run.RunID).
		Str("status", runRow.Status).
		Int64("transactions", runRow.TransactionCount).
		Msg("Run saved to BigQuery")

	return nil
}

// RecordFailureWithClient inserts a FAILED analysis_runs row.
func RecordFailureWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, run pipeline.RunRecord, runErr error) error {
	if err := InsertRowsWithClient(ctx, client, projectID, datasetID, analysisRunsTable, NewFailedRunRow(run, runErr)); err != nil {
		return fmt.Errorf("RecordFailure: %w", err)
	}
	return nil
}
