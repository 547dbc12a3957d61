package bigquery

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
	"github.com/rs/zerolog"
)

func runResult(t *testing.T) *pipeline.Result {
	t.Helper()

	pages := []pipeline.Page{
		{Index: 1, Name: "transaction_page_1.txt", Text: `[
			{"transaction_date": "01-01-2024", "value_date": "01-01-2024", "description": "Opening",
			 "withdrawals": "0.00", "deposits": "0.00", "balance": "1000.00"},
			{"transaction_date": "02-01-2024", "value_date": "02-01-2024", "description": "Shop",
			 "withdrawals": "10.005", "deposits": "0.00", "balance": "989.995"},
			{"transaction_date": "02-01-2024", "value_date": "??", "description": "Bad",
			 "withdrawals": "1", "deposits": "0", "balance": "1"}
		]`},
		{Index: 2, Name: "transaction_page_2.txt", Text: "no json here"},
	}

	ctx := logger.WithContext(context.Background(), zerolog.Nop())
	res, err := pipeline.Run(ctx, pages)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return res
}

func TestNewAnalysisRunRow(t *testing.T) {
	res := runResult(t)
	started := time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)
	run := pipeline.RunRecord{RunID: "run-1", Source: "gs://b/p/", StartedAt: started, FinishedAt: started.Add(time.Minute)}

	row, err := NewAnalysisRunRow(run, res)
	if err != nil {
		t.Fatalf("NewAnalysisRunRow() error = %v", err)
	}

	if row.Status != RunStatusPartial {
		t.Errorf("Status = %q, want %q", row.Status, RunStatusPartial)
	}
	if row.PagesProcessed != 2 || row.PagesSkipped != 1 {
		t.Errorf("pages = %d/%d, want 2/1", row.PagesProcessed, row.PagesSkipped)
	}
	if row.RecordsSeen != 3 || row.RecordsDropped != 1 || row.TransactionCount != 2 {
		t.Errorf("records = seen %d dropped %d tx %d", row.RecordsSeen, row.RecordsDropped, row.TransactionCount)
	}
	if !row.FinishedTS.Valid {
		t.Error("FinishedTS should be set")
	}

	var details []pipeline.ErrorDetail
	if err := json.Unmarshal([]byte(row.Errors.JSONVal), &details); err != nil {
		t.Fatalf("errors JSON: %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("len(details) = %d, want 2", len(details))
	}
	if details[0].Kind != "page" || details[0].Page != 2 {
		t.Errorf("details[0] = %+v", details[0])
	}
	if details[1].Kind != "record" || details[1].Field != "value_date" || details[1].Position == nil || *details[1].Position != 2 {
		t.Errorf("details[1] = %+v", details[1])
	}
}

func TestNewAnalysisRunRow_CleanRun(t *testing.T) {
	ctx := logger.WithContext(context.Background(), zerolog.Nop())
	res, err := pipeline.Run(ctx, []pipeline.Page{{Index: 1, Text: "[]"}})
	if err != nil {
		t.Fatal(err)
	}

	row, err := NewAnalysisRunRow(pipeline.RunRecord{RunID: "r"}, res)
	if err != nil {
		t.Fatal(err)
	}
	if row.Status != RunStatusSuccess {
		t.Errorf("Status = %q, want %q", row.Status, RunStatusSuccess)
	}
	if row.Errors.Valid {
		t.Error("Errors should be NULL for a clean run")
	}
	if row.FinishedTS.Valid {
		t.Error("FinishedTS should be NULL when FinishedAt is zero")
	}
}

func TestNewFailedRunRow(t *testing.T) {
	long := strings.Repeat("x", 3000)
	row := NewFailedRunRow(pipeline.RunRecord{RunID: "r"}, errors.New(long))

	if row.Status != RunStatusFailed {
		t.Errorf("Status = %q", row.Status)
	}
	if len(row.ErrorMessage.StringVal) != maxErrorMessageLen {
		t.Errorf("ErrorMessage length = %d, want %d", len(row.ErrorMessage.StringVal), maxErrorMessageLen)
	}
}

func TestLedgerTransactionRows(t *testing.T) {
	res := runResult(t)
	created := time.Now()

	rows := LedgerTransactionRows("run-1", res.Ledger, created)
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}

	r := rows[1]
	if r.LedgerPosition != 1 || r.StatementPageNo != 1 || r.StatementLineNo != 1 {
		t.Errorf("position fields = %d/%d/%d", r.LedgerPosition, r.StatementPageNo, r.StatementLineNo)
	}
	if r.Withdrawals.Cmp(big.NewRat(10005, 1000)) != 0 {
		t.Errorf("Withdrawals = %s, want full precision 10.005", r.Withdrawals.FloatString(3))
	}
	if r.TransactionID == "" || r.TransactionID == rows[0].TransactionID {
		t.Error("TransactionID should be unique and non-empty")
	}
	if r.TransactionDate.String() != "2024-01-02" {
		t.Errorf("TransactionDate = %s", r.TransactionDate)
	}
}

func TestDailyRollupRowsAndSummary(t *testing.T) {
	res := runResult(t)

	daily := DailyRollupRows("run-1", res.Daily)
	if len(daily) != 2 {
		t.Fatalf("len(daily) = %d, want 2", len(daily))
	}
	// Reported values are rounded half away from zero.
	if daily[1].DailyWithdrawals.Cmp(big.NewRat(1001, 100)) != 0 {
		t.Errorf("DailyWithdrawals = %s, want 10.01", daily[1].DailyWithdrawals.FloatString(2))
	}

	summary := NewRunSummaryRow("run-1", res.Summary)
	if !summary.FirstDate.Valid || summary.FirstDate.Date.String() != "2024-01-01" {
		t.Errorf("FirstDate = %+v", summary.FirstDate)
	}
	if summary.EndingBalance.Cmp(big.NewRat(99000, 100)) != 0 {
		t.Errorf("EndingBalance = %s, want 990.00", summary.EndingBalance.FloatString(2))
	}
}

func TestNewRunSummaryRow_EmptyLedger(t *testing.T) {
	ctx := logger.WithContext(context.Background(), zerolog.Nop())
	res, err := pipeline.Run(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	row := NewRunSummaryRow("r", res.Summary)
	if row.FirstDate.Valid || row.LastDate.Valid {
		t.Error("dates should be NULL for an empty ledger")
	}
	if row.NetChangePct.Sign() != 0 {
		t.Errorf("NetChangePct = %s, want 0", row.NetChangePct.FloatString(2))
	}
}

func TestPageOutputRows(t *testing.T) {
	res := runResult(t)

	rows := PageOutputRows("run-1", res, time.Now())
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if !rows[0].Parsed || rows[0].ErrorMessage.Valid {
		t.Errorf("page 1 should be parsed: %+v", rows[0])
	}
	if rows[1].Parsed || !rows[1].ErrorMessage.Valid {
		t.Errorf("page 2 should be marked failed: %+v", rows[1])
	}
	if rows[1].SourceName.StringVal != "transaction_page_2.txt" {
		t.Errorf("SourceName = %q", rows[1].SourceName.StringVal)
	}
}
