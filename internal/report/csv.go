// Package report writes ledger, summary and daily rollup exports.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dvloznov/statement-ledger/internal/ledger"
)

// Export file names.
const (
	TransactionsFile = "all_transactions.csv"
	SummaryFile      = "financial_report.csv"
	DailyFile        = "daily_summary.csv"
)

var (
	transactionsHeader = []string{"transaction_date", "value_date", "description", "withdrawals", "deposits", "balance"}
	summaryHeader      = []string{"Metric", "Value"}
	// transaction_count trails the rollup columns.
	dailyHeader = []string{
		"date",
		"daily_withdrawals",
		"daily_deposits",
		"closing_balance",
		"cumulative_spend",
		"cumulative_deposits",
		"transaction_count",
	}
)

// WriteTransactions writes the ledger in chronological order. Amounts keep
// the precision they were parsed with.
func WriteTransactions(w io.Writer, l *ledger.Ledger) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(transactionsHeader); err != nil {
		return fmt.Errorf("WriteTransactions: writing header: %w", err)
	}

	for _, tx := range l.Transactions() {
		record := []string{
			tx.TransactionDate().String(),
			tx.ValueDate().String(),
			tx.Description(),
			tx.Withdrawals().String(),
			tx.Deposits().String(),
			tx.Balance().String(),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("WriteTransactions: writing record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteSummary writes the ten summary metrics as Metric,Value rows.
func WriteSummary(w io.Writer, s ledger.SummaryReport) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(summaryHeader); err != nil {
		return fmt.Errorf("WriteSummary: writing header: %w", err)
	}
	for _, m := range s.Metrics() {
		if err := writer.Write([]string{m.Label, m.Value.StringFixed(ledger.MoneyPlaces)}); err != nil {
			return fmt.Errorf("WriteSummary: writing metric %s: %w", m.Key, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteDaily writes the daily rollup, one row per calendar day.
func WriteDaily(w io.Writer, daily ledger.DailyRollup) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(dailyHeader); err != nil {
		return fmt.Errorf("WriteDaily: writing header: %w", err)
	}
	for _, row := range daily {
		r := row.Rounded()
		record := []string{
			r.Date.String(),
			r.DailyWithdrawals.StringFixed(ledger.MoneyPlaces),
			r.DailyDeposits.StringFixed(ledger.MoneyPlaces),
			r.ClosingBalance.StringFixed(ledger.MoneyPlaces),
			r.CumulativeSpend.StringFixed(ledger.MoneyPlaces),
			r.CumulativeDeposits.StringFixed(ledger.MoneyPlaces),
			strconv.Itoa(r.TransactionCount),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("WriteDaily: writing row %s: %w", r.Date, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// Bundle is the data behind one set of export files.
type Bundle struct {
	Ledger  *ledger.Ledger
	Summary ledger.SummaryReport
	Daily   ledger.DailyRollup
}

// WriteFiles writes all three exports into dir and returns their paths.
func WriteFiles(dir string, b Bundle) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("WriteFiles: creating %s: %w", dir, err)
	}

	writers := []struct {
		name  string
		write func(io.Writer) error
	}{
		{TransactionsFile, func(w io.Writer) error { return WriteTransactions(w, b.Ledger) }},
		{SummaryFile, func(w io.Writer) error { return WriteSummary(w, b.Summary) }},
		{DailyFile, func(w io.Writer) error { return WriteDaily(w, b.Daily) }},
	}

	paths := make([]string, 0, len(writers))
	for _, wr := range writers {
		path := filepath.Join(dir, wr.name)
		if err := writeFile(path, wr.write); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writeFile: creating %s: %w", path, err)
	}

	if err := write(file); err != nil {
		file.Close()
		return fmt.Errorf("writeFile: %s: %w", path, err)
	}
	return file.Close()
}
