package domain

import "github.com/shopspring/decimal"

// Amounts leave the process as JSON numbers, not quoted strings.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}
