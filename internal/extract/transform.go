package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/receipt-ledger/internal/domain"
)

// receiptFromModelOutput parses the model's JSON object into a receipt,
// filling sentinels for optional fields the model left out.
func receiptFromModelOutput(raw string) (*domain.ExtractedReceipt, error) {
	clean := cleanModelJSON(raw)

	dec := json.NewDecoder(bytes.NewReader([]byte(clean)))
	dec.UseNumber()

	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w\nraw response: %s", err, raw)
	}
	if obj == nil {
		return nil, fmt.Errorf("model output is not a JSON object")
	}

	dateStr, err := getStringField(obj, "date", true)
	if err != nil {
		return nil, err
	}
	date, err := civil.ParseDate(strings.TrimSpace(dateStr))
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", dateStr, err)
	}

	amount, err := getDecimalField(obj, "amount")
	if err != nil {
		return nil, err
	}
	desc, err := getStringField(obj, "description", true)
	if err != nil {
		return nil, err
	}
	vendor, err := getStringField(obj, "vendor", true)
	if err != nil {
		return nil, err
	}

	receipt := &domain.ExtractedReceipt{
		Date:        date,
		Amount:      amount,
		Description: strings.TrimSpace(desc),
		Vendor:      strings.TrimSpace(vendor),
	}

	optional := []struct {
		key  string
		dst  *string
		dflt string
	}{
		{"transaction_id", &receipt.TransactionID, domain.Unknown},
		{"payment_method", &receipt.PaymentMethod, domain.Unknown},
		{"last_digits", &receipt.LastDigits, domain.Unknown},
		{"currency", &receipt.Currency, domain.DefaultCurrency},
	}
	for _, f := range optional {
		v, err := getOptionalStringField(obj, f.key)
		if err != nil {
			return nil, err
		}
		if v == nil {
			*f.dst = f.dflt
			continue
		}
		*f.dst = *v
	}
	receipt.Currency = strings.ToUpper(receipt.Currency)

	return receipt, nil
}

// cleanModelJSON strips Markdown fences and surrounding chatter, keeping the
// outermost JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	switch val := v.(type) {
	case string:
		if required && strings.TrimSpace(val) == "" {
			return "", fmt.Errorf("required field %q is empty", key)
		}
		return val, nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

func getOptionalStringField(m map[string]interface{}, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" || strings.EqualFold(s, "null") {
			return nil, nil
		}
		return &s, nil
	case json.Number:
		// Models occasionally emit numeric references (e.g. last digits) as numbers.
		s := val.String()
		return &s, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want string or null", key, v)
	}
}

func getDecimalField(m map[string]interface{}, key string) (decimal.Decimal, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return decimal.Zero, fmt.Errorf("missing required field %q", key)
	}
	switch val := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %q: %w", key, err)
		}
		return d, nil
	case string:
		d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(val), ",", ""))
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %q: %w", key, err)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("field %q has type %T, want number", key, v)
	}
}

// today returns the calendar date of now in its own location.
func today(now time.Time) civil.Date {
	return civil.DateOf(now)
}
