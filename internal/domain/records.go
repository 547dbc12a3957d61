package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Field names of the extraction schema. Matching against model output is case-sensitive.
const (
	FieldTransactionDate = "transaction_date"
	FieldValueDate       = "value_date"
	FieldDescription     = "description"
	FieldWithdrawals     = "withdrawals"
	FieldDeposits        = "deposits"
	FieldBalance         = "balance"
)

// Fields lists the schema fields in canonical (export) order.
var Fields = []string{
	FieldTransactionDate,
	FieldValueDate,
	FieldDescription,
	FieldWithdrawals,
	FieldDeposits,
	FieldBalance,
}

// Origin identifies where a record came from: the 1-based page index and the
// 0-based position of the record within that page's array.
type Origin struct {
	Page     int
	Position int
}

// CandidateRecord holds raw field values straight out of extraction.
// A nil field means the key was absent (or null) in the model output.
type CandidateRecord struct {
	Origin Origin

	TransactionDate *string
	ValueDate       *string
	Description     *string
	Withdrawals     *string
	Deposits        *string
	Balance         *string
}

// Get returns the raw value for a schema field name.
func (c CandidateRecord) Get(field string) *string {
	switch field {
	case FieldTransactionDate:
		return c.TransactionDate
	case FieldValueDate:
		return c.ValueDate
	case FieldDescription:
		return c.Description
	case FieldWithdrawals:
		return c.Withdrawals
	case FieldDeposits:
		return c.Deposits
	case FieldBalance:
		return c.Balance
	}
	return nil
}

// Set assigns the raw value for a schema field name. Unknown names are ignored.
func (c *CandidateRecord) Set(field string, v *string) {
	switch field {
	case FieldTransactionDate:
		c.TransactionDate = v
	case FieldValueDate:
		c.ValueDate = v
	case FieldDescription:
		c.Description = v
	case FieldWithdrawals:
		c.Withdrawals = v
	case FieldDeposits:
		c.Deposits = v
	case FieldBalance:
		c.Balance = v
	}
}

// NormalizedRecord is a candidate whose dates and amounts have been converted
// to canonical types. Description is carried through untouched.
type NormalizedRecord struct {
	Origin Origin

	TransactionDate civil.Date
	ValueDate       civil.Date
	Description     *string
	Withdrawals     decimal.Decimal
	Deposits        decimal.Decimal
	Balance         decimal.Decimal
}
