package statement

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/receipt-ledger/internal/domain"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func raw(date, desc, amount string) domain.RawTransaction {
	return domain.RawTransaction{Date: date, Description: desc, Amount: decimal.RequireFromString(amount)}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want []domain.RawTransaction
	}{
		{
			name: "single amount column",
			csv:  "Date,Category,Amount\n2024-01-05,Travel,-120.00\n2024-01-06,Food,45.5\n",
			want: []domain.RawTransaction{
				raw("2024-01-05", "Travel", "-120.00"),
				raw("2024-01-06", "Food", "45.5"),
			},
		},
		{
			name: "debit and credit take precedence over amount",
			csv:  "Date,Debit Amount,Credit Amount,Amount,Category\n2024-02-01,100.00,,999,Rent\n2024-02-02,,2500.00,999,Salary\n2024-02-03,10,4,999,Mixed\n",
			want: []domain.RawTransaction{
				raw("2024-02-01", "Rent", "-100.00"),
				raw("2024-02-02", "Salary", "2500.00"),
				raw("2024-02-03", "Mixed", "-6"),
			},
		},
		{
			name: "headers trimmed and matched case-insensitively",
			csv:  "  DATE , amount ,CATEGORY \n2024-03-01,12.00,Books\n",
			want: []domain.RawTransaction{raw("2024-03-01", "Books", "12.00")},
		},
		{
			name: "no category column",
			csv:  "Date,Amount\n2024-03-02,7\n",
			want: []domain.RawTransaction{raw("2024-03-02", domain.Unknown, "7")},
		},
		{
			name: "date layouts normalised to ISO",
			csv:  "Date,Amount\n15/01/2024,1\n16-01-2024,2\n17 Jan 2024,3\n2024/01/18,4\n",
			want: []domain.RawTransaction{
				raw("2024-01-15", domain.Unknown, "1"),
				raw("2024-01-16", domain.Unknown, "2"),
				raw("2024-01-17", domain.Unknown, "3"),
				raw("2024-01-18", domain.Unknown, "4"),
			},
		},
		{
			name: "bad rows dropped",
			csv:  "Date,Amount\nnot-a-date,5\n2024-01-01,abc\n2024-01-02,\n2024-01-03,\"1,250.00\"\n",
			want: []domain.RawTransaction{raw("2024-01-03", domain.Unknown, "1250.00")},
		},
		{
			name: "byte order mark",
			csv:  "\xef\xbb\xbfDate,Amount\n2024-01-01,1\n",
			want: []domain.RawTransaction{raw("2024-01-01", domain.Unknown, "1")},
		},
		{
			name: "header only",
			csv:  "Date,Amount\n",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize([]byte(tt.csv))
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got, decimalEqual); diff != "" {
				t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalize_FormatErrors(t *testing.T) {
	tests := []struct {
		name        string
		input       []byte
		wantMissing []string
	}{
		{"missing amount", []byte("Date,Description,Category\n2024-01-01,x,y\n"), []string{"amount"}},
		{"debit without credit", []byte("Date,Debit Amount\n2024-01-01,5\n"), []string{"amount"}},
		{"missing date", []byte("Posted,Amount\n2024-01-01,5\n"), []string{"date"}},
		{"missing both", []byte("foo,bar\n1,2\n"), []string{"date", "amount"}},
		{"empty", []byte(""), nil},
		{"invalid utf8", []byte{0xff, 0xfe, 0x00, 'D'}, nil},
		{"unbalanced quotes", []byte("Date,Amount\n\"2024-01-01,5\n"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)
			if got != nil {
				t.Errorf("Normalize() returned %d rows, want none", len(got))
			}
			var fe *domain.FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("Normalize() error = %v, want *FormatError", err)
			}
			if diff := cmp.Diff(tt.wantMissing, fe.Missing); diff != "" {
				t.Errorf("Missing mismatch (-want +got):\n%s", diff)
			}
			if tt.wantMissing == nil && fe.Reason == "" {
				t.Error("Reason is empty for undecodable input")
			}
		})
	}
}
