package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// ListRunsWithClient returns the most recent analysis runs, newest first.
func ListRunsWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID string, limit int) ([]*AnalysisRunRow, error) {
	if limit <= 0 {
		limit = 50
	}

	q := client.Query(fmt.Sprintf(`
		SELECT
			run_id,
			source,
			started_ts,
			finished_ts,
			status,
			error_message,
			pages_processed,
			pages_skipped,
			records_seen,
			records_dropped,
			transaction_count,
			errors
		FROM `+"`%s.%s.%s`"+`
		ORDER BY started_ts DESC
		LIMIT @limit
	`, projectID, datasetID, analysisRunsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRuns: query read: %w", err)
	}

	var rows []*AnalysisRunRow
	for {
		var r AnalysisRunRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRuns: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}

// QueryDailyRollupWithClient returns a run's daily rows in date order.
func QueryDailyRollupWithClient(ctx context.Context, client *bigquery.Client, projectID, datasetID, runID string) ([]*DailyRollupRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			run_id,
			rollup_date,
			daily_withdrawals,
			daily_deposits,
			closing_balance,
			cumulative_spend,
			cumulative_deposits,
			transaction_count
		FROM `+"`%s.%s.%s`"+`
		WHERE run_id = @run_id
		ORDER BY rollup_date
	`, projectID, datasetID, dailyRollupsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryDailyRollup: query read: %w", err)
	}

	var rows []*DailyRollupRow
	for {
		var r DailyRollupRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryDailyRollup: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
