package pipeline

import (
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

func strPtr(s string) *string { return &s }

func candidate() domain.CandidateRecord {
	return domain.CandidateRecord{
		Origin:          domain.Origin{Page: 2, Position: 4},
		TransactionDate: strPtr("01-02-2024"),
		ValueDate:       strPtr("02/02/2024"),
		Description:     strPtr("  Grocery store  "),
		Withdrawals:     strPtr("1,234.56"),
		Deposits:        strPtr("0.00"),
		Balance:         strPtr("-10.5"),
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		raw    string
		want   civil.Date
		wantOK bool
	}{
		{"01-02-2024", civil.Date{Year: 2024, Month: 2, Day: 1}, true},
		{"1-2-2024", civil.Date{Year: 2024, Month: 2, Day: 1}, true},
		{"31/12/2023", civil.Date{Year: 2023, Month: 12, Day: 31}, true},
		{"2024-03-15", civil.Date{Year: 2024, Month: 3, Day: 15}, true},
		{"  15-03-2024 ", civil.Date{Year: 2024, Month: 3, Day: 15}, true},
		{"31-02-2024", civil.Date{}, false},
		{"March 3, 2024", civil.Date{}, false},
		{"", civil.Date{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseDate(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ParseDate(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{"1,234.56", "1234.56", true},
		{" 0.00 ", "0", true},
		{"-10.5", "-10.5", true},
		{"1,000,000", "1000000", true},
		{"", "", false},
		{" , ", "", false},
		{"12.3.4", "", false},
		{"N/A", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseAmount(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ParseAmount(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if ok && !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalize_Valid(t *testing.T) {
	n, err := Normalize(candidate())
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if n.TransactionDate != (civil.Date{Year: 2024, Month: 2, Day: 1}) {
		t.Errorf("TransactionDate = %v", n.TransactionDate)
	}
	if n.ValueDate != (civil.Date{Year: 2024, Month: 2, Day: 2}) {
		t.Errorf("ValueDate = %v", n.ValueDate)
	}
	if !n.Withdrawals.Equal(decimal.RequireFromString("1234.56")) {
		t.Errorf("Withdrawals = %s", n.Withdrawals)
	}
	if !n.Balance.Equal(decimal.RequireFromString("-10.5")) {
		t.Errorf("Balance = %s", n.Balance)
	}
	if n.Description == nil || *n.Description != "  Grocery store  " {
		t.Errorf("Description should pass through unchanged, got %v", n.Description)
	}
	if n.Origin != (domain.Origin{Page: 2, Position: 4}) {
		t.Errorf("Origin = %+v", n.Origin)
	}
}

func TestNormalize_Failures(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *domain.CandidateRecord)
		wantField string
		wantRaw   string
		missing   bool
	}{
		{
			name:      "unparseable transaction date",
			mutate:    func(c *domain.CandidateRecord) { c.TransactionDate = strPtr("yesterday") },
			wantField: domain.FieldTransactionDate,
			wantRaw:   "yesterday",
		},
		{
			name:      "missing value date",
			mutate:    func(c *domain.CandidateRecord) { c.ValueDate = nil },
			wantField: domain.FieldValueDate,
			missing:   true,
		},
		{
			name:      "empty deposits",
			mutate:    func(c *domain.CandidateRecord) { c.Deposits = strPtr("") },
			wantField: domain.FieldDeposits,
			wantRaw:   "",
		},
		{
			name:      "missing balance",
			mutate:    func(c *domain.CandidateRecord) { c.Balance = nil },
			wantField: domain.FieldBalance,
			missing:   true,
		},
		{
			name: "first failing field wins",
			mutate: func(c *domain.CandidateRecord) {
				c.Withdrawals = strPtr("abc")
				c.Balance = strPtr("xyz")
			},
			wantField: domain.FieldWithdrawals,
			wantRaw:   "abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := candidate()
			tt.mutate(&c)

			_, err := Normalize(c)
			var fe *FieldNormalizationError
			if !errors.As(err, &fe) {
				t.Fatalf("error = %v, want *FieldNormalizationError", err)
			}
			if fe.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", fe.Field, tt.wantField)
			}
			if fe.RawValue != tt.wantRaw {
				t.Errorf("RawValue = %q, want %q", fe.RawValue, tt.wantRaw)
			}
			if fe.Missing != tt.missing {
				t.Errorf("Missing = %v, want %v", fe.Missing, tt.missing)
			}
		})
	}
}

func TestNormalize_MissingDescriptionPassesThrough(t *testing.T) {
	c := candidate()
	c.Description = nil

	n, err := Normalize(c)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if n.Description != nil {
		t.Errorf("Description = %q, want nil", *n.Description)
	}
}
