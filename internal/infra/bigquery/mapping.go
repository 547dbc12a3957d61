package bigquery

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
	"github.com/google/uuid"
)

const maxErrorMessageLen = 2000

// NewAnalysisRunRow summarizes a finished run. Status is PARTIAL when any
// page or record was dropped.
func NewAnalysisRunRow(run pipeline.RunRecord, res *pipeline.Result) (*AnalysisRunRow, error) {
	status := RunStatusSuccess
	if res.Errors.Count() > 0 {
		status = RunStatusPartial
	}

	row := &AnalysisRunRow{
		RunID:            run.RunID,
		Source:           run.Source,
		StartedTS:        run.StartedAt,
		FinishedTS:       bigquery.NullTimestamp{Timestamp: run.FinishedAt, Valid: !run.FinishedAt.IsZero()},
		Status:           status,
		PagesProcessed:   int64(res.PagesProcessed),
		PagesSkipped:     int64(len(res.Errors.PageErrors)),
		RecordsSeen:      int64(res.RecordsSeen),
		RecordsDropped:   int64(len(res.Errors.RecordErrors)),
		TransactionCount: int64(res.Ledger.Len()),
	}

	if res.Errors.Count() > 0 {
		payload, err := json.Marshal(res.Errors.Details())
		if err != nil {
			return nil, fmt.Errorf("NewAnalysisRunRow: marshal errors: %w", err)
		}
		row.Errors = bigquery.NullJSON{JSONVal: string(payload), Valid: true}
	}

	return row, nil
}

// NewFailedRunRow records a run that could not complete.
func NewFailedRunRow(run pipeline.RunRecord, runErr error) *AnalysisRunRow {
	return &AnalysisRunRow{
		RunID:        run.RunID,
		Source:       run.Source,
		StartedTS:    run.StartedAt,
		FinishedTS:   bigquery.NullTimestamp{Timestamp: run.FinishedAt, Valid: !run.FinishedAt.IsZero()},
		Status:       RunStatusFailed,
		ErrorMessage: nullString(truncate(errorText(runErr), maxErrorMessageLen)),
	}
}

// LedgerTransactionRows maps the ledger in chronological order. Amounts keep
// full precision.
func LedgerTransactionRows(runID string, l *ledger.Ledger, created time.Time) []*LedgerTransactionRow {
	txs := l.Transactions()
	rows := make([]*LedgerTransactionRow, 0, len(txs))
	for i, tx := range txs {
		rows = append(rows, &LedgerTransactionRow{
			TransactionID:   uuid.NewString(),
			RunID:           runID,
			LedgerPosition:  int64(i),
			StatementPageNo: int64(tx.Origin().Page),
			StatementLineNo: int64(tx.Origin().Position),
			TransactionDate: tx.TransactionDate(),
			ValueDate:       tx.ValueDate(),
			Description:     tx.Description(),
			Withdrawals:     tx.Withdrawals().Rat(),
			Deposits:        tx.Deposits().Rat(),
			Balance:         tx.Balance().Rat(),
			CreatedTS:       created,
		})
	}
	return rows
}

// DailyRollupRows maps the rollup with reported (rounded) values.
func DailyRollupRows(runID string, daily ledger.DailyRollup) []*DailyRollupRow {
	rows := make([]*DailyRollupRow, 0, len(daily))
	for _, d := range daily {
		r := d.Rounded()
		rows = append(rows, &DailyRollupRow{
			RunID:              runID,
			RollupDate:         r.Date,
			DailyWithdrawals:   r.DailyWithdrawals.Rat(),
			DailyDeposits:      r.DailyDeposits.Rat(),
			ClosingBalance:     r.ClosingBalance.Rat(),
			CumulativeSpend:    r.CumulativeSpend.Rat(),
			CumulativeDeposits: r.CumulativeDeposits.Rat(),
			TransactionCount:   int64(r.TransactionCount),
		})
	}
	return rows
}

// NewRunSummaryRow maps the summary with reported (rounded) values.
func NewRunSummaryRow(runID string, s ledger.SummaryReport) *RunSummaryRow {
	r := s.Rounded()
	row := &RunSummaryRow{
		RunID:             runID,
		TotalDeposits:     r.TotalDeposits.Rat(),
		TotalWithdrawals:  r.TotalWithdrawals.Rat(),
		AverageDeposit:    r.AverageDeposit.Rat(),
		AverageWithdrawal: r.AverageWithdrawal.Rat(),
		MaxDeposit:        r.MaxDeposit.Rat(),
		MaxWithdrawal:     r.MaxWithdrawal.Rat(),
		StartingBalance:   r.StartingBalance.Rat(),
		EndingBalance:     r.EndingBalance.Rat(),
		NetChange:         r.NetChange.Rat(),
		NetChangePct:      r.NetChangePct.Rat(),
		TransactionCount:  int64(r.TransactionCount),
		DepositCount:      int64(r.DepositCount),
		WithdrawalCount:   int64(r.WithdrawalCount),
	}
	if r.TransactionCount > 0 {
		row.FirstDate = bigquery.NullDate{Date: r.FirstDate, Valid: true}
		row.LastDate = bigquery.NullDate{Date: r.LastDate, Valid: true}
	}
	return row
}

// PageOutputRows keeps every input page with its parse outcome.
func PageOutputRows(runID string, res *pipeline.Result, created time.Time) []*PageOutputRow {
	failed := make(map[int]string, len(res.Errors.PageErrors))
	for _, pe := range res.Errors.PageErrors {
		failed[pe.Page] = pe.Reason
	}

	rows := make([]*PageOutputRow, 0, len(res.Pages))
	for _, p := range res.Pages {
		reason, isFailed := failed[p.Index]
		row := &PageOutputRow{
			RunID:      runID,
			PageNo:     int64(p.Index),
			SourceName: nullString(p.Name),
			RawText:    p.Text,
			Parsed:     !isFailed,
			CreatedTS:  created,
		}
		if isFailed {
			row.ErrorMessage = nullString(reason)
		}
		rows = append(rows, row)
	}
	return rows
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
