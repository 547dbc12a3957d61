// Package ledger holds the chronologically ordered set of validated
// transactions for one statement and derives summary and per-day aggregates.
package ledger

import (
	"fmt"
	"sort"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// Ledger is an ordered, read-only sequence of transactions sorted by
// transaction date. Transactions sharing a date keep extraction order.
type Ledger struct {
	txs []domain.Transaction
}

// New copies txs and stable-sorts the copy by transaction date.
// The input is expected in extraction order (page, then position).
func New(txs []domain.Transaction) *Ledger {
	sorted := make([]domain.Transaction, len(txs))
	copy(sorted, txs)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TransactionDate().Before(sorted[j].TransactionDate())
	})

	return &Ledger{txs: sorted}
}

// Len returns the number of transactions.
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.txs)
}

// Transactions returns a copy of the ordered transactions.
func (l *Ledger) Transactions() []domain.Transaction {
	if l == nil {
		return nil
	}
	out := make([]domain.Transaction, len(l.txs))
	copy(out, l.txs)
	return out
}

// AggregationPreconditionError signals a ledger that is not in chronological
// order. A Ledger built with New can never trigger it.
type AggregationPreconditionError struct {
	Index int
}

func (e *AggregationPreconditionError) Error() string {
	return fmt.Sprintf("ledger is not chronologically sorted at index %d", e.Index)
}

// checkOrder returns an error for the first position whose date precedes its predecessor.
func (l *Ledger) checkOrder() error {
	for i := 1; i < len(l.txs); i++ {
		if l.txs[i].TransactionDate().Before(l.txs[i-1].TransactionDate()) {
			return &AggregationPreconditionError{Index: i}
		}
	}
	return nil
}
