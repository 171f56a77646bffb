package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExtractionFailed is returned when no extraction tier produced a receipt.
	ErrExtractionFailed = errors.New("receipt extraction failed")

	// ErrDuplicateSource marks a document whose source id is already in the ledger.
	// The batch pipeline logs it and moves on; it is never returned to callers.
	ErrDuplicateSource = errors.New("source id already ingested")
)

// FormatError reports a bank statement that cannot be normalised.
type FormatError struct {
	// Missing lists required columns that could not be located, from {date, description, amount}.
	Missing []string
	// Reason is set when the buffer could not be decoded as tabular text at all.
	Reason string
}

func (e *FormatError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("unsupported statement format: missing columns: %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("unsupported statement format: %s", e.Reason)
}
