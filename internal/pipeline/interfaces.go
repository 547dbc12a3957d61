package pipeline

import (
	"context"
)

// PageExtractor turns one page image into the model's raw text output.
// This interface enables mocking of the recognition service.
type PageExtractor interface {
	ExtractPage(ctx context.Context, image []byte, mimeType string) (string, error)
}

// PageSource loads the recognized page texts of one statement.
type PageSource interface {
	LoadPages(ctx context.Context, location string) ([]Page, error)
}

// ResultStore persists the outcome of a run.
type ResultStore interface {
	SaveRun(ctx context.Context, run RunRecord, res *Result) error
}

// Publisher pushes a run's daily rollup to an external destination.
type Publisher interface {
	PublishRun(ctx context.Context, runID string, res *Result) error
}
