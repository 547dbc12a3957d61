package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// Run statuses stored in analysis_runs.status.
const (
	RunStatusSuccess = "SUCCESS"
	RunStatusPartial = "PARTIAL"
	RunStatusFailed  = "FAILED"
)

type AnalysisRunRow struct {
	RunID  string `bigquery:"run_id"` // REQUIRED
	Source string `bigquery:"source"` // REQUIRED

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Status       string              `bigquery:"status"`        // REQUIRED
	ErrorMessage bigquery.NullString `bigquery:"error_message"` // NULLABLE

	PagesProcessed   int64 `bigquery:"pages_processed"`
	PagesSkipped     int64 `bigquery:"pages_skipped"`
	RecordsSeen      int64 `bigquery:"records_seen"`
	RecordsDropped   int64 `bigquery:"records_dropped"`
	TransactionCount int64 `bigquery:"transaction_count"`

	Errors bigquery.NullJSON `bigquery:"errors"` // NULLABLE, error batch detail
}

type LedgerTransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	RunID         string `bigquery:"run_id"`         // REQUIRED

	LedgerPosition  int64 `bigquery:"ledger_position"`   // REQUIRED, 0-based chronological
	StatementPageNo int64 `bigquery:"statement_page_no"` // REQUIRED
	StatementLineNo int64 `bigquery:"statement_line_no"` // REQUIRED, 0-based within page

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED
	ValueDate       civil.Date `bigquery:"value_date"`       // REQUIRED
	Description     string     `bigquery:"description"`      // REQUIRED

	Withdrawals *big.Rat `bigquery:"withdrawals"` // REQUIRED NUMERIC
	Deposits    *big.Rat `bigquery:"deposits"`    // REQUIRED NUMERIC
	Balance     *big.Rat `bigquery:"balance"`     // REQUIRED NUMERIC

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

type DailyRollupRow struct {
	RunID      string     `bigquery:"run_id"`      // REQUIRED
	RollupDate civil.Date `bigquery:"rollup_date"` // REQUIRED

	DailyWithdrawals   *big.Rat `bigquery:"daily_withdrawals"`
	DailyDeposits      *big.Rat `bigquery:"daily_deposits"`
	ClosingBalance     *big.Rat `bigquery:"closing_balance"`
	CumulativeSpend    *big.Rat `bigquery:"cumulative_spend"`
	CumulativeDeposits *big.Rat `bigquery:"cumulative_deposits"`

	TransactionCount int64 `bigquery:"transaction_count"`
}

type RunSummaryRow struct {
	RunID string `bigquery:"run_id"` // REQUIRED

	FirstDate bigquery.NullDate `bigquery:"first_date"` // NULLABLE, empty ledger
	LastDate  bigquery.NullDate `bigquery:"last_date"`  // NULLABLE, empty ledger

	TotalDeposits     *big.Rat `bigquery:"total_deposits"`
	TotalWithdrawals  *big.Rat `bigquery:"total_withdrawals"`
	AverageDeposit    *big.Rat `bigquery:"average_deposit"`
	AverageWithdrawal *big.Rat `bigquery:"average_withdrawal"`
	MaxDeposit        *big.Rat `bigquery:"max_deposit"`
	MaxWithdrawal     *big.Rat `bigquery:"max_withdrawal"`
	StartingBalance   *big.Rat `bigquery:"starting_balance"`
	EndingBalance     *big.Rat `bigquery:"ending_balance"`
	NetChange         *big.Rat `bigquery:"net_change"`
	NetChangePct      *big.Rat `bigquery:"net_change_pct"`

	TransactionCount int64 `bigquery:"transaction_count"`
	DepositCount     int64 `bigquery:"deposit_count"`
	WithdrawalCount  int64 `bigquery:"withdrawal_count"`
}

// PageOutputRow keeps a page's raw model output next to its parse outcome.
type PageOutputRow struct {
	RunID  string `bigquery:"run_id"`  // REQUIRED
	PageNo int64  `bigquery:"page_no"` // REQUIRED

	SourceName bigquery.NullString `bigquery:"source_name"` // NULLABLE
	RawText    string              `bigquery:"raw_text"`    // REQUIRED

	Parsed       bool                `bigquery:"parsed"`        // REQUIRED
	ErrorMessage bigquery.NullString `bigquery:"error_message"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}
