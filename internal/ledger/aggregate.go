package ledger

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places used for reported values.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// SummaryReport holds ledger-wide aggregates at full precision.
// Use Rounded or Metrics for output.
type SummaryReport struct {
	TotalDeposits     decimal.Decimal
	TotalWithdrawals  decimal.Decimal
	AverageDeposit    decimal.Decimal
	AverageWithdrawal decimal.Decimal
	MaxDeposit        decimal.Decimal
	MaxWithdrawal     decimal.Decimal
	StartingBalance   decimal.Decimal
	EndingBalance     decimal.Decimal
	NetChange         decimal.Decimal
	NetChangePct      decimal.Decimal

	TransactionCount int
	DepositCount     int
	WithdrawalCount  int
	FirstDate        civil.Date
	LastDate         civil.Date
}

// Metric is one labelled summary value.
type Metric struct {
	Key   string
	Label string
	Value decimal.Decimal
}

// Rounded returns a copy with every monetary value rounded half away from
// zero to MoneyPlaces.
func (s SummaryReport) Rounded() SummaryReport {
	r := s
	r.TotalDeposits = s.TotalDeposits.Round(MoneyPlaces)
	r.TotalWithdrawals = s.TotalWithdrawals.Round(MoneyPlaces)
	r.AverageDeposit = s.AverageDeposit.Round(MoneyPlaces)
	r.AverageWithdrawal = s.AverageWithdrawal.Round(MoneyPlaces)
	r.MaxDeposit = s.MaxDeposit.Round(MoneyPlaces)
	r.MaxWithdrawal = s.MaxWithdrawal.Round(MoneyPlaces)
	r.StartingBalance = s.StartingBalance.Round(MoneyPlaces)
	r.EndingBalance = s.EndingBalance.Round(MoneyPlaces)
	r.NetChange = s.NetChange.Round(MoneyPlaces)
	r.NetChangePct = s.NetChangePct.Round(MoneyPlaces)
	return r
}

// Metrics returns the ten reported metrics, rounded, in fixed order.
func (s SummaryReport) Metrics() []Metric {
	r := s.Rounded()
	return []Metric{
		{Key: "total_deposits", Label: "Total Deposits", Value: r.TotalDeposits},
		{Key: "total_withdrawals", Label: "Total Withdrawals", Value: r.TotalWithdrawals},
		{Key: "average_deposit", Label: "Average Deposit", Value: r.AverageDeposit},
		{Key: "average_withdrawal", Label: "Average Withdrawal", Value: r.AverageWithdrawal},
		{Key: "max_deposit", Label: "Max Deposit", Value: r.MaxDeposit},
		{Key: "max_withdrawal", Label: "Max Withdrawal", Value: r.MaxWithdrawal},
		{Key: "starting_balance", Label: "Starting Balance", Value: r.StartingBalance},
		{Key: "ending_balance", Label: "Ending Balance", Value: r.EndingBalance},
		{Key: "net_change", Label: "Net Change", Value: r.NetChange},
		{Key: "net_change_pct", Label: "Net Change %", Value: r.NetChangePct},
	}
}

// DailyRow aggregates the transactions of a single calendar day.
type DailyRow struct {
	Date               civil.Date
	DailyWithdrawals   decimal.Decimal
	DailyDeposits      decimal.Decimal
	ClosingBalance     decimal.Decimal
	CumulativeSpend    decimal.Decimal
	CumulativeDeposits decimal.Decimal
	TransactionCount   int
}

// Rounded returns a copy with monetary values rounded to MoneyPlaces.
func (d DailyRow) Rounded() DailyRow {
	r := d
	r.DailyWithdrawals = d.DailyWithdrawals.Round(MoneyPlaces)
	r.DailyDeposits = d.DailyDeposits.Round(MoneyPlaces)
	r.ClosingBalance = d.ClosingBalance.Round(MoneyPlaces)
	r.CumulativeSpend = d.CumulativeSpend.Round(MoneyPlaces)
	r.CumulativeDeposits = d.CumulativeDeposits.Round(MoneyPlaces)
	return r
}

// DailyRollup is the per-day series in ascending date order.
type DailyRollup []DailyRow

// Aggregate computes the summary and the daily rollup of l.
// It panics with *AggregationPreconditionError if l is out of order.
func Aggregate(l *Ledger) (SummaryReport, DailyRollup) {
	if l == nil || len(l.txs) == 0 {
		return emptySummary(), DailyRollup{}
	}
	if err := l.checkOrder(); err != nil {
		panic(err)
	}
	return summarize(l), rollup(l)
}

func emptySummary() SummaryReport {
	return SummaryReport{
		TotalDeposits:     decimal.Zero,
		TotalWithdrawals:  decimal.Zero,
		AverageDeposit:    decimal.Zero,
		AverageWithdrawal: decimal.Zero,
		MaxDeposit:        decimal.Zero,
		MaxWithdrawal:     decimal.Zero,
		StartingBalance:   decimal.Zero,
		EndingBalance:     decimal.Zero,
		NetChange:         decimal.Zero,
		NetChangePct:      decimal.Zero,
	}
}

func summarize(l *Ledger) SummaryReport {
	s := emptySummary()
	s.TransactionCount = len(l.txs)

	for _, tx := range l.txs {
		d, w := tx.Deposits(), tx.Withdrawals()

		s.TotalDeposits = s.TotalDeposits.Add(d)
		s.TotalWithdrawals = s.TotalWithdrawals.Add(w)

		if d.IsPositive() {
			s.DepositCount++
		}
		if w.IsPositive() {
			s.WithdrawalCount++
		}
		if d.GreaterThan(s.MaxDeposit) {
			s.MaxDeposit = d
		}
		if w.GreaterThan(s.MaxWithdrawal) {
			s.MaxWithdrawal = w
		}
	}

	// Only non-zero amounts count towards the averages.
	if s.DepositCount > 0 {
		s.AverageDeposit = s.TotalDeposits.Div(decimal.NewFromInt(int64(s.DepositCount)))
	}
	if s.WithdrawalCount > 0 {
		s.AverageWithdrawal = s.TotalWithdrawals.Div(decimal.NewFromInt(int64(s.WithdrawalCount)))
	}

	first, last := l.txs[0], l.txs[len(l.txs)-1]
	s.FirstDate = first.TransactionDate()
	s.LastDate = last.TransactionDate()
	s.StartingBalance = first.Balance()
	s.EndingBalance = last.Balance()
	s.NetChange = s.EndingBalance.Sub(s.StartingBalance)

	if !s.StartingBalance.IsZero() {
		s.NetChangePct = s.NetChange.Mul(hundred).Div(s.StartingBalance)
	}

	return s
}

// rollup walks the ledger once; cumulative columns depend on every earlier row.
func rollup(l *Ledger) DailyRollup {
	var (
		out        DailyRollup
		spend      = decimal.Zero
		depositSum = decimal.Zero
	)

	for _, tx := range l.txs {
		date := tx.TransactionDate()
		if len(out) == 0 || out[len(out)-1].Date != date {
			out = append(out, DailyRow{
				Date:             date,
				DailyWithdrawals: decimal.Zero,
				DailyDeposits:    decimal.Zero,
			})
		}

		row := &out[len(out)-1]
		row.DailyWithdrawals = row.DailyWithdrawals.Add(tx.Withdrawals())
		row.DailyDeposits = row.DailyDeposits.Add(tx.Deposits())
		row.ClosingBalance = tx.Balance()
		row.TransactionCount++

		spend = spend.Add(tx.Withdrawals())
		depositSum = depositSum.Add(tx.Deposits())
		row.CumulativeSpend = spend
		row.CumulativeDeposits = depositSum
	}

	return out
}
