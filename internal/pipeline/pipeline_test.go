package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func quietContext() context.Context {
	return logger.WithContext(context.Background(), zerolog.Nop())
}

const page1 = "```json\n" + `[
  {"transaction_date": "01-01-2024", "value_date": "01-01-2024", "description": "Opening balance",
   "withdrawals": "0.00", "deposits": "0.00", "balance": "1,000.00"},
  {"transaction_date": "02-01-2024", "value_date": "02-01-2024", "description": "Rent",
   "withdrawals": "100.00", "deposits": "0.00", "balance": "900.00"},
  {"transaction_date": "not a date", "value_date": "02-01-2024", "description": "Broken",
   "withdrawals": "1.00", "deposits": "0.00", "balance": "899.00"}
]` + "\n```"

const page2 = `[
  {"transaction_date": "01-01-2024", "value_date": "01-01-2024", "description": "Late posting",
   "withdrawals": "0.00", "deposits": "50.00", "balance": "950.00"},
  {"transaction_date": "03-01-2024", "value_date": "03-01-2024", "description": "   ",
   "withdrawals": "0.00", "deposits": "5.00", "balance": "955.00"},
  {"transaction_date": "03-01-2024", "value_date": "03-01-2024", "description": "Refund",
   "withdrawals": "-5.00", "deposits": "0.00", "balance": "960.00"}
]`

const page3 = "Sorry, I cannot read this page."

func TestRun_MixedPages(t *testing.T) {
	pages := []pipeline.Page{
		{Index: 1, Name: "transaction_page_1.txt", Text: page1},
		{Index: 2, Name: "transaction_page_2.txt", Text: page2},
		{Index: 3, Name: "transaction_page_3.txt", Text: page3},
	}

	res, err := pipeline.Run(quietContext(), pages, pipeline.WithConcurrency(2))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.PagesProcessed != 3 {
		t.Errorf("PagesProcessed = %d, want 3", res.PagesProcessed)
	}
	if res.RecordsSeen != 6 {
		t.Errorf("RecordsSeen = %d, want 6", res.RecordsSeen)
	}
	if res.Ledger.Len() != 3 {
		t.Fatalf("Ledger.Len() = %d, want 3", res.Ledger.Len())
	}

	// Equal dates keep extraction order: page 1 row 0 before page 2 row 0.
	txs := res.Ledger.Transactions()
	wantOrigins := []domain.Origin{{Page: 1, Position: 0}, {Page: 2, Position: 0}, {Page: 1, Position: 1}}
	for i, want := range wantOrigins {
		if txs[i].Origin() != want {
			t.Errorf("tx %d origin = %+v, want %+v", i, txs[i].Origin(), want)
		}
	}

	if got := res.Errors.SkippedPages(); len(got) != 1 || got[0] != 3 {
		t.Errorf("SkippedPages() = %v, want [3]", got)
	}
	if res.Errors.PageErrors[0].Name != "transaction_page_3.txt" {
		t.Errorf("PageErrors[0].Name = %q", res.Errors.PageErrors[0].Name)
	}
	if len(res.Errors.RecordErrors) != 3 {
		t.Fatalf("len(RecordErrors) = %d, want 3", len(res.Errors.RecordErrors))
	}
	if res.Errors.NormalizationFailures() != 1 {
		t.Errorf("NormalizationFailures() = %d, want 1", res.Errors.NormalizationFailures())
	}
	if res.Errors.SchemaFailures() != 2 {
		t.Errorf("SchemaFailures() = %d, want 2", res.Errors.SchemaFailures())
	}

	var fe *pipeline.FieldNormalizationError
	if !errors.As(res.Errors.RecordErrors[0], &fe) || fe.Field != domain.FieldTransactionDate {
		t.Errorf("RecordErrors[0] = %v, want transaction_date normalization failure", res.Errors.RecordErrors[0])
	}
	if res.Errors.RecordErrors[0].Origin != (domain.Origin{Page: 1, Position: 2}) {
		t.Errorf("RecordErrors[0].Origin = %+v", res.Errors.RecordErrors[0].Origin)
	}

	if !res.Summary.StartingBalance.Equal(decimal.RequireFromString("1000")) {
		t.Errorf("StartingBalance = %s, want 1000", res.Summary.StartingBalance)
	}
	if !res.Summary.EndingBalance.Equal(decimal.RequireFromString("900")) {
		t.Errorf("EndingBalance = %s, want 900", res.Summary.EndingBalance)
	}
	if len(res.Daily) != 2 {
		t.Errorf("len(Daily) = %d, want 2", len(res.Daily))
	}

	summary := res.Errors.Summary()
	if !strings.Contains(summary, "1 page(s) skipped") || !strings.Contains(summary, "3 record(s) dropped") {
		t.Errorf("Summary() = %q", summary)
	}
}

func TestRun_NoPages(t *testing.T) {
	res, err := pipeline.Run(quietContext(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Ledger.Len() != 0 || len(res.Daily) != 0 {
		t.Errorf("expected empty ledger and rollup")
	}
	if res.Errors.Count() != 0 {
		t.Errorf("Errors.Count() = %d, want 0", res.Errors.Count())
	}
	if res.Errors.Summary() != "no errors" {
		t.Errorf("Summary() = %q", res.Errors.Summary())
	}
}

func TestRun_AllPagesBad(t *testing.T) {
	pages := []pipeline.Page{
		{Index: 1, Text: "nothing here"},
		{Index: 2, Text: `{"not": "an array"}`},
	}

	res, err := pipeline.Run(quietContext(), pages)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Ledger.Len() != 0 {
		t.Errorf("Ledger.Len() = %d, want 0", res.Ledger.Len())
	}
	if len(res.Errors.PageErrors) != 2 {
		t.Errorf("len(PageErrors) = %d, want 2", len(res.Errors.PageErrors))
	}
	if !res.Summary.NetChangePct.IsZero() {
		t.Errorf("NetChangePct = %s, want 0", res.Summary.NetChangePct)
	}
}

func TestRun_Deterministic(t *testing.T) {
	pages := []pipeline.Page{
		{Index: 1, Text: page1},
		{Index: 2, Text: page2},
		{Index: 3, Text: page3},
	}

	first, err := pipeline.Run(quietContext(), pages, pipeline.WithConcurrency(1))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := pipeline.Run(quietContext(), pages, pipeline.WithConcurrency(8))
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		a, b := first.Ledger.Transactions(), again.Ledger.Transactions()
		if len(a) != len(b) {
			t.Fatalf("ledger length differs: %d vs %d", len(a), len(b))
		}
		for j := range a {
			if a[j].Origin() != b[j].Origin() {
				t.Fatalf("ledger order differs at %d", j)
			}
		}
		if first.Errors.Summary() != again.Errors.Summary() {
			t.Fatalf("error batch differs")
		}
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(quietContext())
	cancel()

	_, err := pipeline.Run(ctx, []pipeline.Page{{Index: 1, Text: page1}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
