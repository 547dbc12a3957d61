package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

// ErrPublishingDisabled is returned for jobs that ask to publish when no
// publisher is configured.
var ErrPublishingDisabled = errors.New("publishing is not configured")

// FailureRecorder stores runs that did not finish.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, run pipeline.RunRecord, runErr error) error
}

// StatementRunner executes AnalyzeStatementJobs: load pages, analyze,
// persist and optionally publish. Store, Failures and Publisher may be nil.
type StatementRunner struct {
	Pages     pipeline.PageSource
	Store     pipeline.ResultStore
	Failures  FailureRecorder
	Publisher pipeline.Publisher
	Options   []pipeline.Option
}

// Handle is a JobHandler.
func (r *StatementRunner) Handle(ctx context.Context, job *AnalyzeStatementJob) error {
	if job.Publish && r.Publisher == nil {
		return fmt.Errorf("Handle: job %s: %w", job.JobID, ErrPublishingDisabled)
	}

	state := pipeline.NewPipelineState(job.Source)
	job.RunID = state.RunID

	log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{
		"job_id": job.JobID,
		"run_id": state.RunID,
	})
	ctx = logger.WithContext(ctx, log)

	p := pipeline.NewPipeline(
		&pipeline.LoadPagesStep{Source: r.Pages},
		&pipeline.AnalyzeStep{Options: r.Options},
	)
	if r.Store != nil {
		p = pipeline.NewStatementPipeline(r.Pages, r.Store, r.Options...)
	}

	if err := p.Execute(ctx, state); err != nil {
		if r.Failures != nil {
			if ferr := r.Failures.RecordFailure(ctx, state.Record(), err); ferr != nil {
				log.Warn().Err(ferr).Msg("Failed to record failed run")
			}
		}
		return err
	}

	// The run is stored by now; a publish failure only fails the job.
	if job.Publish {
		step := &pipeline.PublishStep{Publisher: r.Publisher}
		if err := step.Execute(ctx, state); err != nil {
			return err
		}
	}

	res := state.Result
	job.TransactionCount = res.Ledger.Len()
	job.PagesSkipped = len(res.Errors.PageErrors)
	job.RecordsDropped = len(res.Errors.RecordErrors)

	log.Info().
		Int("transactions", job.TransactionCount).
		Int("pages_skipped", job.PagesSkipped).
		Int("records_dropped", job.RecordsDropped).
		Msg("Statement analyzed")
	return nil
}
