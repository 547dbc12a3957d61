package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PipelineStep represents a single step in statement processing.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	RunID     string
	Source    string
	StartedAt time.Time
	Pages     []Page
	Result    *Result
}

// RunRecord identifies one processed statement.
type RunRecord struct {
	RunID      string
	Source     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewPipelineState prepares state for processing the statement at source.
func NewPipelineState(source string) *PipelineState {
	return &PipelineState{
		RunID:     uuid.NewString(),
		Source:    source,
		StartedAt: time.Now().UTC(),
	}
}

// Record returns the run's identity, stamped with the current finish time.
func (s *PipelineState) Record() RunRecord {
	return RunRecord{
		RunID:      s.RunID,
		Source:     s.Source,
		StartedAt:  s.StartedAt,
		FinishedAt: time.Now().UTC(),
	}
}

// LoadPagesStep loads page texts from a PageSource.
type LoadPagesStep struct {
	Source PageSource
}

func (s *LoadPagesStep) Execute(ctx context.Context, state *PipelineState) error {
	pages, err := s.Source.LoadPages(ctx, state.Source)
	if err != nil {
		return fmt.Errorf("load pages: %w", err)
	}
	if len(pages) == 0 {
		return fmt.Errorf("load pages: no pages found at %s", state.Source)
	}
	state.Pages = pages
	return nil
}

// AnalyzeStep runs parse, normalize, validate and aggregate over the loaded pages.
type AnalyzeStep struct {
	Options []Option
}

func (s *AnalyzeStep) Execute(ctx context.Context, state *PipelineState) error {
	res, err := Run(ctx, state.Pages, s.Options...)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	state.Result = res
	return nil
}

// PersistStep saves the result through a ResultStore.
type PersistStep struct {
	Store ResultStore
}

func (s *PersistStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Result == nil {
		return fmt.Errorf("persist: no result to save")
	}
	if err := s.Store.SaveRun(ctx, state.Record(), state.Result); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}

// PublishStep pushes the daily rollup to a Publisher.
type PublishStep struct {
	Publisher Publisher
}

func (s *PublishStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Result == nil {
		return fmt.Errorf("publish: no result to publish")
	}
	if err := s.Publisher.PublishRun(ctx, state.RunID, state.Result); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewStatementPipeline creates the load, analyze, persist pipeline used for jobs.
func NewStatementPipeline(source PageSource, store ResultStore, opts ...Option) *Pipeline {
	return NewPipeline(
		&LoadPagesStep{Source: source},
		&AnalyzeStep{Options: opts},
		&PersistStep{Store: store},
	)
}
