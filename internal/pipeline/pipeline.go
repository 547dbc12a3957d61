package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/observability"
	"golang.org/x/sync/errgroup"
)

// Page is one page of recognized statement text.
// Index is the 1-based page identifier; Name is optional (e.g. a file name).
type Page struct {
	Index int
	Name  string
	Text  string
}

// Result is everything a run produces.
type Result struct {
	Ledger  *ledger.Ledger
	Summary ledger.SummaryReport
	Daily   ledger.DailyRollup
	Errors  ErrorBatch

	// Pages are the inputs, kept for persisting raw model output.
	Pages []Page

	PagesProcessed int
	RecordsSeen    int
}

type runOptions struct {
	concurrency int
}

// Option configures Run.
type Option func(*runOptions)

// WithConcurrency bounds how many pages are processed at once.
// Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(o *runOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// pageOutcome is the per-page slot written by exactly one goroutine.
type pageOutcome struct {
	txs        []domain.Transaction
	seen       int
	pageErr    *PageParseError
	recordErrs []*RecordError
}

// Run parses, normalizes and validates every page, then builds the ledger
// and its aggregates. Bad pages and bad records are collected in
// Result.Errors and never abort the run; only context cancellation does.
func Run(ctx context.Context, pages []Page, opts ...Option) (*Result, error) {
	o := runOptions{concurrency: DefaultPageConcurrency}
	for _, opt := range opts {
		opt(&o)
	}

	log := logger.FromContext(ctx)
	start := time.Now()
	defer func() {
		observability.RunDuration.Observe(time.Since(start).Seconds())
	}()

	outcomes := make([]pageOutcome, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i, p := range pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = processPage(p)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Pages: pages, PagesProcessed: len(pages)}
	var txs []domain.Transaction

	// Concatenate in page order so the stable sort preserves extraction order.
	for i, out := range outcomes {
		res.RecordsSeen += out.seen
		if out.pageErr != nil {
			res.Errors.PageErrors = append(res.Errors.PageErrors, out.pageErr)
			observability.PagesTotal.WithLabelValues(observability.OutcomeSkipped).Inc()
			log.Warn().
				Int("page", out.pageErr.Page).
				Str("name", pages[i].Name).
				Str("reason", out.pageErr.Reason).
				Msg("Skipping page with unparseable model output")
			continue
		}
		observability.PagesTotal.WithLabelValues(observability.OutcomeAccepted).Inc()

		for _, re := range out.recordErrs {
			observability.RecordsTotal.WithLabelValues(recordOutcome(re)).Inc()
			log.Debug().
				Int("page", re.Origin.Page).
				Int("position", re.Origin.Position).
				Err(re.Err).
				Msg("Dropping record")
		}
		res.Errors.RecordErrors = append(res.Errors.RecordErrors, out.recordErrs...)

		observability.RecordsTotal.WithLabelValues(observability.OutcomeAccepted).Add(float64(len(out.txs)))
		txs = append(txs, out.txs...)
	}

	res.Ledger = ledger.New(txs)
	res.Summary, res.Daily = ledger.Aggregate(res.Ledger)

	log.Info().
		Int("pages", res.PagesProcessed).
		Int("records_seen", res.RecordsSeen).
		Int("transactions", res.Ledger.Len()).
		Int("pages_skipped", len(res.Errors.PageErrors)).
		Int("records_dropped", len(res.Errors.RecordErrors)).
		Dur("duration", time.Since(start)).
		Msg("Pipeline run completed")

	return res, nil
}

// processPage runs parse, normalize and validate for a single page.
func processPage(p Page) pageOutcome {
	candidates, err := ParsePage(p.Index, p.Text)
	if err != nil {
		var pe *PageParseError
		if !errors.As(err, &pe) {
			pe = &PageParseError{Page: p.Index, Reason: err.Error()}
		}
		pe.Name = p.Name
		return pageOutcome{pageErr: pe}
	}

	out := pageOutcome{seen: len(candidates)}
	for _, c := range candidates {
		n, err := Normalize(c)
		if err != nil {
			out.recordErrs = append(out.recordErrs, &RecordError{Origin: c.Origin, Err: err})
			continue
		}
		tx, err := domain.NewTransaction(n)
		if err != nil {
			out.recordErrs = append(out.recordErrs, &RecordError{Origin: c.Origin, Err: err})
			continue
		}
		out.txs = append(out.txs, tx)
	}
	return out
}

func recordOutcome(re *RecordError) string {
	var sv *domain.SchemaViolation
	if errors.As(re, &sv) {
		return observability.OutcomeSchema
	}
	return observability.OutcomeNormalization
}
