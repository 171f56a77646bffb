// Package statement turns uploaded bank statements into raw transactions.
package statement

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/receipt-ledger/internal/domain"
)

const (
	colDate        = "date"
	colAmount      = "amount"
	colDebit       = "debit amount"
	colCredit      = "credit amount"
	colCategory    = "category"
	fieldNameDate  = "date"
	fieldNameMoney = "amount"
)

// DateLayouts are the statement date formats accepted, tried in order.
// Slash and dash numeric dates are read day first.
var DateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2/1/2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"02-Jan-06",
	"Jan 2, 2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// columns holds the resolved header positions, -1 when absent.
type columns struct {
	date, amount, debit, credit, category int
}

// Normalize parses a CSV bank statement with a header row into raw transactions.
//
// Headers are trimmed and matched case-insensitively. When both "Debit Amount"
// and "Credit Amount" are present the amount is credit minus debit, blanks
// counting as zero; otherwise an "Amount" column is required. Descriptions come
// from "Category" when present. Rows whose date or amount cannot be parsed are
// dropped. A *domain.FormatError is returned when a required column is missing
// or the buffer is not a readable table.
func Normalize(data []byte) ([]domain.RawTransaction, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &domain.FormatError{Reason: "statement is empty"}
	}
	if !utf8.Valid(data) {
		return nil, &domain.FormatError{Reason: "statement is not valid UTF-8 text"}
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, &domain.FormatError{Reason: fmt.Sprintf("read header: %v", err)}
	}

	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	var out []domain.RawTransaction
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &domain.FormatError{Reason: fmt.Sprintf("read row: %v", err)}
		}

		tx, ok := cols.transaction(record)
		if !ok {
			continue
		}
		out = append(out, tx)
	}

	return out, nil
}

func resolveColumns(header []string) (columns, error) {
	cols := columns{date: -1, amount: -1, debit: -1, credit: -1, category: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case colDate:
			setOnce(&cols.date, i)
		case colAmount:
			setOnce(&cols.amount, i)
		case colDebit:
			setOnce(&cols.debit, i)
		case colCredit:
			setOnce(&cols.credit, i)
		case colCategory:
			setOnce(&cols.category, i)
		}
	}

	var missing []string
	if cols.date < 0 {
		missing = append(missing, fieldNameDate)
	}
	if !cols.debitCredit() && cols.amount < 0 {
		missing = append(missing, fieldNameMoney)
	}
	if len(missing) > 0 {
		return cols, &domain.FormatError{Missing: missing}
	}
	return cols, nil
}

func setOnce(dst *int, i int) {
	if *dst < 0 {
		*dst = i
	}
}

func (c columns) debitCredit() bool {
	return c.debit >= 0 && c.credit >= 0
}

func (c columns) transaction(record []string) (domain.RawTransaction, bool) {
	date, ok := parseDate(cell(record, c.date))
	if !ok {
		return domain.RawTransaction{}, false
	}

	var amount decimal.Decimal
	if c.debitCredit() {
		debit, ok := parseAmountOrZero(cell(record, c.debit))
		if !ok {
			return domain.RawTransaction{}, false
		}
		credit, ok := parseAmountOrZero(cell(record, c.credit))
		if !ok {
			return domain.RawTransaction{}, false
		}
		amount = credit.Sub(debit)
	} else {
		raw := cell(record, c.amount)
		if raw == "" {
			return domain.RawTransaction{}, false
		}
		amount, ok = parseAmountOrZero(raw)
		if !ok {
			return domain.RawTransaction{}, false
		}
	}

	description := domain.Unknown
	if c.category >= 0 {
		description = cell(record, c.category)
	}

	return domain.RawTransaction{
		Date:        date,
		Description: description,
		Amount:      amount,
	}, true
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func parseDate(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(domain.DateLayout), true
		}
	}
	return "", false
}

// parseAmountOrZero reads a decimal amount, ignoring thousands separators.
// A blank cell is zero.
func parseAmountOrZero(s string) (decimal.Decimal, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
