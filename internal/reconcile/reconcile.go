// Package reconcile matches ledger records against bank statement lines.
package reconcile

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/receipt-ledger/internal/domain"
)

// Tolerance is the exclusive bound on the absolute amount difference of a match.
var Tolerance = decimal.New(1, -2)

// Reconcile pairs ledger records with bank lines greedily. Ledger records are
// visited in order and each takes the first unconsumed bank line that matches;
// a bank line is consumed by at most one match. The result holds one Matched or
// Only in Ledger outcome per ledger record in ledger order, followed by an Only
// in Bank outcome for every unconsumed bank line in bank order.
func Reconcile(ledger []domain.LedgerRecord, bank []domain.RawTransaction) []domain.Outcome {
	consumed := make([]bool, len(bank))
	out := make([]domain.Outcome, 0, len(ledger)+len(bank))

	for i := range ledger {
		l := &ledger[i]
		status := domain.StatusOnlyInLedger
		for j := range bank {
			if consumed[j] || !matches(l, &bank[j]) {
				continue
			}
			consumed[j] = true
			status = domain.StatusMatched
			break
		}
		out = append(out, domain.LedgerOutcome(status, l))
	}

	for j := range bank {
		if !consumed[j] {
			out = append(out, domain.BankOutcome(&bank[j]))
		}
	}

	return out
}

func matches(l *domain.LedgerRecord, b *domain.RawTransaction) bool {
	if l.Date.String() != b.Date {
		return false
	}
	if l.Amount.Sub(b.Amount).Abs().GreaterThanOrEqual(Tolerance) {
		return false
	}
	return sameTransactionID(l.TransactionID, b.TransactionID) ||
		strings.Contains(b.Description, l.Description)
}

// sameTransactionID reports whether both sides carry the same known reference.
// Unlike plain equality, two absent (or Unknown) references never match.
func sameTransactionID(a, b *string) bool {
	if a == nil || b == nil {
		return false
	}
	if *a == "" || *a == domain.Unknown {
		return false
	}
	return *a == *b
}
