package handlers

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	infraBQ "github.com/dvloznov/statement-ledger/internal/infra/bigquery"
	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

// TransactionJSON is one ledger line. Amounts keep full precision.
type TransactionJSON struct {
	Page            int    `json:"page"`
	Position        int    `json:"position"`
	TransactionDate string `json:"transaction_date"`
	ValueDate       string `json:"value_date"`
	Description     string `json:"description"`
	Withdrawals     string `json:"withdrawals"`
	Deposits        string `json:"deposits"`
	Balance         string `json:"balance"`
}

// SummaryJSON holds the ten rounded metrics keyed by metric key, plus counts.
// Metrics are JSON numbers with two decimal places.
type SummaryJSON struct {
	Metrics          map[string]json.Number `json:"metrics"`
	TransactionCount int                    `json:"transaction_count"`
	DepositCount     int                    `json:"deposit_count"`
	WithdrawalCount  int                    `json:"withdrawal_count"`
	FirstDate        string                 `json:"first_date,omitempty"`
	LastDate         string                 `json:"last_date,omitempty"`
}

// DailyJSON is one rounded rollup row.
type DailyJSON struct {
	Date               string `json:"date"`
	DailyWithdrawals   string `json:"daily_withdrawals"`
	DailyDeposits      string `json:"daily_deposits"`
	ClosingBalance     string `json:"closing_balance"`
	CumulativeSpend    string `json:"cumulative_spend"`
	CumulativeDeposits string `json:"cumulative_deposits"`
	TransactionCount   int    `json:"transaction_count"`
}

// AnalysisResponse is the body returned by POST /api/analyze.
type AnalysisResponse struct {
	PagesProcessed int                    `json:"pages_processed"`
	RecordsSeen    int                    `json:"records_seen"`
	Transactions   []TransactionJSON      `json:"transactions"`
	Summary        SummaryJSON            `json:"summary"`
	Daily          []DailyJSON            `json:"daily"`
	Errors         []pipeline.ErrorDetail `json:"errors"`
	ErrorSummary   string                 `json:"error_summary"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(ledger.MoneyPlaces)
}

// NewAnalysisResponse converts a pipeline result for the wire.
func NewAnalysisResponse(res *pipeline.Result) AnalysisResponse {
	resp := AnalysisResponse{
		PagesProcessed: res.PagesProcessed,
		RecordsSeen:    res.RecordsSeen,
		Transactions:   make([]TransactionJSON, 0, res.Ledger.Len()),
		Daily:          make([]DailyJSON, 0, len(res.Daily)),
		Errors:         res.Errors.Details(),
		ErrorSummary:   res.Errors.Summary(),
	}

	for _, tx := range res.Ledger.Transactions() {
		resp.Transactions = append(resp.Transactions, TransactionJSON{
			Page:            tx.Origin().Page,
			Position:        tx.Origin().Position,
			TransactionDate: tx.TransactionDate().String(),
			ValueDate:       tx.ValueDate().String(),
			Description:     tx.Description(),
			Withdrawals:     tx.Withdrawals().String(),
			Deposits:        tx.Deposits().String(),
			Balance:         tx.Balance().String(),
		})
	}

	s := res.Summary
	resp.Summary = SummaryJSON{
		Metrics:          make(map[string]json.Number, 10),
		TransactionCount: s.TransactionCount,
		DepositCount:     s.DepositCount,
		WithdrawalCount:  s.WithdrawalCount,
	}
	for _, m := range s.Metrics() {
		resp.Summary.Metrics[m.Key] = json.Number(money(m.Value))
	}
	if s.TransactionCount > 0 {
		resp.Summary.FirstDate = s.FirstDate.String()
		resp.Summary.LastDate = s.LastDate.String()
	}

	for _, row := range res.Daily {
		r := row.Rounded()
		resp.Daily = append(resp.Daily, DailyJSON{
			Date:               r.Date.String(),
			DailyWithdrawals:   money(r.DailyWithdrawals),
			DailyDeposits:      money(r.DailyDeposits),
			ClosingBalance:     money(r.ClosingBalance),
			CumulativeSpend:    money(r.CumulativeSpend),
			CumulativeDeposits: money(r.CumulativeDeposits),
			TransactionCount:   r.TransactionCount,
		})
	}

	return resp
}

// RunJSON is a stored analysis run.
type RunJSON struct {
	RunID            string `json:"run_id"`
	Source           string `json:"source"`
	Status           string `json:"status"`
	StartedAt        string `json:"started_at"`
	FinishedAt       string `json:"finished_at,omitempty"`
	ErrorMessage     string `json:"error_message,omitempty"`
	PagesProcessed   int64  `json:"pages_processed"`
	PagesSkipped     int64  `json:"pages_skipped"`
	RecordsDropped   int64  `json:"records_dropped"`
	TransactionCount int64  `json:"transaction_count"`
}

func newRunJSON(row *infraBQ.AnalysisRunRow) RunJSON {
	r := RunJSON{
		RunID:            row.RunID,
		Source:           row.Source,
		Status:           row.Status,
		StartedAt:        row.StartedTS.UTC().Format(time.RFC3339),
		ErrorMessage:     row.ErrorMessage.StringVal,
		PagesProcessed:   row.PagesProcessed,
		PagesSkipped:     row.PagesSkipped,
		RecordsDropped:   row.RecordsDropped,
		TransactionCount: row.TransactionCount,
	}
	if row.FinishedTS.Valid {
		r.FinishedAt = row.FinishedTS.Timestamp.UTC().Format(time.RFC3339)
	}
	return r
}

func newStoredDailyJSON(row *infraBQ.DailyRollupRow) DailyJSON {
	return DailyJSON{
		Date:               row.RollupDate.String(),
		DailyWithdrawals:   ratString(row.DailyWithdrawals),
		DailyDeposits:      ratString(row.DailyDeposits),
		ClosingBalance:     ratString(row.ClosingBalance),
		CumulativeSpend:    ratString(row.CumulativeSpend),
		CumulativeDeposits: ratString(row.CumulativeDeposits),
		TransactionCount:   int(row.TransactionCount),
	}
}

func ratString(r *big.Rat) string {
	if r == nil {
		return ""
	}
	return r.FloatString(ledger.MoneyPlaces)
}
