package domain

import (
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Transaction is one validated statement line. Values are only reachable
// through accessors, and the only constructor is NewTransaction.
type Transaction struct {
	origin Origin

	transactionDate civil.Date
	valueDate       civil.Date
	description     string
	withdrawals     decimal.Decimal
	deposits        decimal.Decimal
	balance         decimal.Decimal
}

func (t Transaction) Origin() Origin { return t.origin }
func (t Transaction) TransactionDate() civil.Date { return t.transactionDate }
func (t Transaction) ValueDate() civil.Date { return t.valueDate }
func (t Transaction) Description() string { return t.description }
func (t Transaction) Withdrawals() decimal.Decimal { return t.withdrawals }
func (t Transaction) Deposits() decimal.Decimal { return t.deposits }
func (t Transaction) Balance() decimal.Decimal { return t.balance }

// FieldViolation is a single failed constraint.
type FieldViolation struct {
	Field  string
	Reason string
}

// SchemaViolation lists every constraint a normalized record failed.
type SchemaViolation struct {
	Violations []FieldViolation
}

func (e *SchemaViolation) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Reason))
	}
	return "schema violation: " + strings.Join(parts, "; ")
}

// Has reports whether the given field has at least one violation.
func (e *SchemaViolation) Has(field string) bool {
	for _, v := range e.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

// NewTransaction validates a normalized record against the canonical schema.
// Either a complete Transaction is returned or a *SchemaViolation carrying
// all violated constraints. Balance may be negative (overdraft).
func NewTransaction(n NormalizedRecord) (Transaction, error) {
	var violations []FieldViolation
	add := func(field, reason string) {
		violations = append(violations, FieldViolation{Field: field, Reason: reason})
	}

	if !n.TransactionDate.IsValid() {
		add(FieldTransactionDate, "required date is missing or invalid")
	}
	if !n.ValueDate.IsValid() {
		add(FieldValueDate, "required date is missing or invalid")
	}

	switch {
	case n.Description == nil:
		add(FieldDescription, "required field is missing")
	case strings.TrimSpace(*n.Description) == "":
		add(FieldDescription, "must not be empty")
	}

	if n.Withdrawals.IsNegative() {
		add(FieldWithdrawals, fmt.Sprintf("must be >= 0, got %s", n.Withdrawals))
	}
	if n.Deposits.IsNegative() {
		add(FieldDeposits, fmt.Sprintf("must be >= 0, got %s", n.Deposits))
	}

	if len(violations) > 0 {
		return Transaction{}, &SchemaViolation{Violations: violations}
	}

	return Transaction{
		origin:          n.Origin,
		transactionDate: n.TransactionDate,
		valueDate:       n.ValueDate,
		description:     *n.Description,
		withdrawals:     n.Withdrawals,
		deposits:        n.Deposits,
		balance:         n.Balance,
	}, nil
}
