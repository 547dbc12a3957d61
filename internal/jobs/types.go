package jobs

import (
	"context"
	"errors"
	"time"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	// JobStatusRetrying is set between a failed attempt and its re-enqueue.
	JobStatusRetrying JobStatus = "retrying"
)

// ErrJobNotFound is returned by stores for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// ErrQueueClosed is returned when publishing to a stopped queue.
var ErrQueueClosed = errors.New("queue is closed")

// AnalyzeStatementJob asks a worker to run the ledger pipeline over one
// set of page transcriptions.
type AnalyzeStatementJob struct {
	JobID string `json:"job_id"`

	// Source is a gs:// prefix or local directory holding the page texts.
	Source string `json:"source"`

	// Publish also pushes the daily rollup to Notion.
	Publish bool `json:"publish,omitempty"`

	// RunID is assigned by the handler once the pipeline starts.
	RunID string `json:"run_id,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	// Outcome counts, filled on completion.
	TransactionCount int `json:"transaction_count"`
	PagesSkipped     int `json:"pages_skipped"`
	RecordsDropped   int `json:"records_dropped"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Publisher enqueues jobs.
type Publisher interface {
	PublishAnalyzeStatement(ctx context.Context, job *AnalyzeStatementJob) error
	Close() error
}

// Consumer runs a handler over queued jobs.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes one job. It may record results on the job (RunID,
// counts); a returned error marks the attempt as failed.
type JobHandler func(ctx context.Context, job *AnalyzeStatementJob) error

// JobStore persists job state for status queries.
type JobStore interface {
	SaveJob(ctx context.Context, job *AnalyzeStatementJob) error
	GetJob(ctx context.Context, jobID string) (*AnalyzeStatementJob, error)

	// ListJobs returns matching jobs, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*AnalyzeStatementJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Source string
	Status JobStatus
	Limit  int
	Offset int
}
