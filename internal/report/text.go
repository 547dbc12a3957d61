package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dvloznov/statement-ledger/internal/ledger"
)

// PrintSummary renders the summary metrics as an aligned table.
func PrintSummary(w io.Writer, s ledger.SummaryReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Period:\t%s .. %s\n", dateOrDash(s), lastOrDash(s))
	fmt.Fprintf(tw, "Transactions:\t%d\n", s.TransactionCount)
	for _, m := range s.Metrics() {
		fmt.Fprintf(tw, "%s:\t%s\n", m.Label, m.Value.StringFixed(ledger.MoneyPlaces))
	}
	return tw.Flush()
}

func dateOrDash(s ledger.SummaryReport) string {
	if s.TransactionCount == 0 {
		return "-"
	}
	return s.FirstDate.String()
}

func lastOrDash(s ledger.SummaryReport) string {
	if s.TransactionCount == 0 {
		return "-"
	}
	return s.LastDate.String()
}
