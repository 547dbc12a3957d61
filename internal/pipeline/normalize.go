package pipeline

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// dateLayouts are tried in order; the first that parses wins.
// Day and month accept one or two digits.
var dateLayouts = []string{
	"2-1-2006",
	"2/1/2006",
	"2006-1-2",
}

// Normalize converts a candidate's raw text into typed values.
// The first field that fails, in schema order, is reported.
// Description is carried through untouched; presence is checked by the validator.
func Normalize(c domain.CandidateRecord) (domain.NormalizedRecord, error) {
	n := domain.NormalizedRecord{
		Origin:      c.Origin,
		Description: c.Description,
	}

	var err error
	if n.TransactionDate, err = normalizeDate(domain.FieldTransactionDate, c.TransactionDate); err != nil {
		return domain.NormalizedRecord{}, err
	}
	if n.ValueDate, err = normalizeDate(domain.FieldValueDate, c.ValueDate); err != nil {
		return domain.NormalizedRecord{}, err
	}
	if n.Withdrawals, err = normalizeAmount(domain.FieldWithdrawals, c.Withdrawals); err != nil {
		return domain.NormalizedRecord{}, err
	}
	if n.Deposits, err = normalizeAmount(domain.FieldDeposits, c.Deposits); err != nil {
		return domain.NormalizedRecord{}, err
	}
	if n.Balance, err = normalizeAmount(domain.FieldBalance, c.Balance); err != nil {
		return domain.NormalizedRecord{}, err
	}

	return n, nil
}

// ParseDate parses a statement date in DD-MM-YYYY, DD/MM/YYYY or YYYY-MM-DD form.
func ParseDate(raw string) (civil.Date, bool) {
	s := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), true
		}
	}
	return civil.Date{}, false
}

// ParseAmount parses a decimal amount, ignoring thousands separators.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func normalizeDate(field string, raw *string) (civil.Date, error) {
	if raw == nil {
		return civil.Date{}, &FieldNormalizationError{Field: field, Missing: true}
	}
	d, ok := ParseDate(*raw)
	if !ok {
		return civil.Date{}, &FieldNormalizationError{Field: field, RawValue: *raw}
	}
	return d, nil
}

func normalizeAmount(field string, raw *string) (decimal.Decimal, error) {
	if raw == nil {
		return decimal.Decimal{}, &FieldNormalizationError{Field: field, Missing: true}
	}
	d, ok := ParseAmount(*raw)
	if !ok {
		return decimal.Decimal{}, &FieldNormalizationError{Field: field, RawValue: *raw}
	}
	return d, nil
}
