package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

// RunRepository provides an interface for analysis run storage.
type RunRepository interface {
	// SaveRun writes a finished run with its ledger, rollup, summary and page outputs.
	SaveRun(ctx context.Context, run pipeline.RunRecord, res *pipeline.Result) error

	// RecordFailure writes a FAILED run row.
	RecordFailure(ctx context.Context, run pipeline.RunRecord, runErr error) error

	// ListRuns returns recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]*AnalysisRunRow, error)

	// QueryDailyRollup returns a run's daily rows in date order.
	QueryDailyRollup(ctx context.Context, runID string) ([]*DailyRollupRow, error)

	// DeleteRun removes a run and its related rows.
	DeleteRun(ctx context.Context, runID string) error
}

var _ pipeline.ResultStore = (*BigQueryRunRepository)(nil)
var _ RunRepository = (*BigQueryRunRepository)(nil)

// BigQueryRunRepository is the concrete implementation of RunRepository.
// It holds a shared BigQuery client to avoid creating a new connection for
// each operation.
type BigQueryRunRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewBigQueryRunRepository creates a repository for projectID.datasetID.
func NewBigQueryRunRepository(ctx context.Context, projectID, datasetID string) (*BigQueryRunRepository, error) {
	if projectID == "" || datasetID == "" {
		return nil, fmt.Errorf("NewBigQueryRunRepository: project and dataset are required")
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryRunRepository: creating client: %w", err)
	}
	return &BigQueryRunRepository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryRunRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *BigQueryRunRepository) SaveRun(ctx context.Context, run pipeline.RunRecord, res *pipeline.Result) error {
	return SaveRunWithClient(ctx, r.client, r.projectID, r.datasetID, run, res)
}

func (r *BigQueryRunRepository) RecordFailure(ctx context.Context, run pipeline.RunRecord, runErr error) error {
	return RecordFailureWithClient(ctx, r.client, r.projectID, r.datasetID, run, runErr)
}

func (r *BigQueryRunRepository) ListRuns(ctx context.Context, limit int) ([]*AnalysisRunRow, error) {
	return ListRunsWithClient(ctx, r.client, r.projectID, r.datasetID, limit)
}

func (r *BigQueryRunRepository) QueryDailyRollup(ctx context.Context, runID string) ([]*DailyRollupRow, error) {
	return QueryDailyRollupWithClient(ctx, r.client, r.projectID, r.datasetID, runID)
}

func (r *BigQueryRunRepository) DeleteRun(ctx context.Context, runID string) error {
	return DeleteRunWithClient(ctx, r.client, r.projectID, r.datasetID, runID)
}
