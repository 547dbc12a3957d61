package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// DeleteRunWithClient deletes a run and all its related rows. Detail tables
// go first so a partially deleted run never shows up as complete.
func DeleteRunWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID, runID string) error {
	tables := []string{
		ledgerTransactionsTable,
		dailyRollupsTable,
		runSummariesTable,
		pageOutputsTable,
		analysisRunsTable,
	}

	for _, table := range tables {
		if err := deleteByRunID(ctx, client, projectID, datasetID, table, runID); err != nil {
			return fmt.Errorf("DeleteRun: deleting from %s: %w", table, err)
		}
	}
	return nil
}

func deleteByRunID(ctx context.Context, client *bigquery.Client, projectID, datasetID, table, runID string) error {
	q := client.Query(fmt.Sprintf("DELETE FROM `%s.%s.%s` WHERE run_id = @run_id", projectID, datasetID, table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}
