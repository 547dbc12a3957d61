package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// PageParseError means a page's text could not be recovered as a JSON array.
// The page contributes no records; the run continues.
type PageParseError struct {
	Page   int
	Name   string
	Reason string
}

func (e *PageParseError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("page %d (%s): %s", e.Page, e.Name, e.Reason)
	}
	return fmt.Sprintf("page %d: %s", e.Page, e.Reason)
}

// FieldNormalizationError names the field whose raw text could not be converted.
type FieldNormalizationError struct {
	Field    string
	RawValue string
	Missing  bool
}

func (e *FieldNormalizationError) Error() string {
	if e.Missing {
		return fmt.Sprintf("field %q: value is missing", e.Field)
	}
	return fmt.Sprintf("field %q: cannot parse %q", e.Field, e.RawValue)
}

// RecordError wraps a per-record failure (normalization or schema) with its origin.
type RecordError struct {
	Origin domain.Origin
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("page %d record %d: %v", e.Origin.Page, e.Origin.Position, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// ErrorBatch collects every non-fatal failure of a run.
type ErrorBatch struct {
	PageErrors   []*PageParseError
	RecordErrors []*RecordError
}

// Count returns the total number of collected errors.
func (b ErrorBatch) Count() int {
	return len(b.PageErrors) + len(b.RecordErrors)
}

// SkippedPages returns the identifiers of pages that contributed no records.
func (b ErrorBatch) SkippedPages() []int {
	pages := make([]int, 0, len(b.PageErrors))
	for _, e := range b.PageErrors {
		pages = append(pages, e.Page)
	}
	return pages
}

// NormalizationFailures counts dropped records that failed field conversion.
func (b ErrorBatch) NormalizationFailures() int {
	n := 0
	for _, e := range b.RecordErrors {
		var fe *FieldNormalizationError
		if errors.As(e, &fe) {
			n++
		}
	}
	return n
}

// SchemaFailures counts dropped records that failed validation.
func (b ErrorBatch) SchemaFailures() int {
	n := 0
	for _, e := range b.RecordErrors {
		var sv *domain.SchemaViolation
		if errors.As(e, &sv) {
			n++
		}
	}
	return n
}

// Summary renders a short human-readable description of the batch.
func (b ErrorBatch) Summary() string {
	if b.Count() == 0 {
		return "no errors"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d page(s) skipped, %d record(s) dropped (%d normalization, %d schema)",
		len(b.PageErrors), len(b.RecordErrors), b.NormalizationFailures(), b.SchemaFailures())
	for _, e := range b.PageErrors {
		sb.WriteString("\n  - " + e.Error())
	}
	for _, e := range b.RecordErrors {
		sb.WriteString("\n  - " + e.Error())
	}
	return sb.String()
}

// ErrorDetail is a flat, serializable view of one batch entry.
type ErrorDetail struct {
	Kind     string `json:"kind"`
	Page     int    `json:"page"`
	Position *int   `json:"position,omitempty"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
}

// Details flattens the batch, page errors first. Field is the failing field
// for normalization errors and the first violated field for schema errors.
func (b ErrorBatch) Details() []ErrorDetail {
	details := make([]ErrorDetail, 0, b.Count())
	for _, pe := range b.PageErrors {
		details = append(details, ErrorDetail{Kind: "page", Page: pe.Page, Message: pe.Reason})
	}
	for _, re := range b.RecordErrors {
		pos := re.Origin.Position
		d := ErrorDetail{Kind: "record", Page: re.Origin.Page, Position: &pos, Message: re.Err.Error()}

		var fe *FieldNormalizationError
		var sv *domain.SchemaViolation
		switch {
		case errors.As(re, &fe):
			d.Field = fe.Field
		case errors.As(re, &sv) && len(sv.Violations) > 0:
			d.Field = sv.Violations[0].Field
		}
		details = append(details, d)
	}
	return details
}
