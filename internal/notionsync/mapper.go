package notionsync

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jomei/notionapi"

	"github.com/dvloznov/receipt-ledger/internal/domain"
)

// Property names of the reconciliation database.
const (
	PropDescription   = "Description"
	PropKey           = "Outcome Key"
	PropReportID      = "Report ID"
	PropStatus        = "Status"
	PropDate          = "Date"
	PropAmount        = "Amount"
	PropVendor        = "Vendor"
	PropTransactionID = "Transaction ID"
	PropPaymentMethod = "Payment Method"
	PropLastDigits    = "Last Digits"
	PropCurrency      = "Currency"
	PropSourceID      = "Source ID"
)

// OutcomeKey identifies one outcome of one report.
func OutcomeKey(reportID string, position int) string {
	return fmt.Sprintf("%s#%d", reportID, position)
}

// OutcomeToNotionProperties converts a reconciliation outcome to Notion properties.
func OutcomeToNotionProperties(reportID string, position int, o *domain.Outcome) notionapi.Properties {
	props := notionapi.Properties{
		PropDescription: notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{Content: o.Description},
				},
			},
		},
		PropKey:      richText(OutcomeKey(reportID, position)),
		PropReportID: richText(reportID),
		PropStatus: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(o.Status)},
		},
		PropAmount: notionapi.NumberProperty{
			Number: o.Amount.InexactFloat64(),
		},
	}

	if d, err := civil.ParseDate(o.Date); err == nil {
		start := notionapi.Date(d.In(time.UTC))
		props[PropDate] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &start},
		}
	}

	// Select options cannot be empty, and Unknown is kept as text.
	if o.Vendor != nil && *o.Vendor != "" {
		props[PropVendor] = richText(*o.Vendor)
	}
	if o.TransactionID != nil && *o.TransactionID != "" {
		props[PropTransactionID] = richText(*o.TransactionID)
	}
	if o.PaymentMethod != nil && *o.PaymentMethod != "" {
		props[PropPaymentMethod] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: *o.PaymentMethod},
		}
	}
	if o.LastFourDigits != nil && *o.LastFourDigits != "" {
		props[PropLastDigits] = richText(*o.LastFourDigits)
	}
	if o.Currency != nil && *o.Currency != "" {
		props[PropCurrency] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: *o.Currency},
		}
	}
	if o.SourceID != nil {
		props[PropSourceID] = richText(*o.SourceID)
	}

	return props
}

func richText(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		RichText: []notionapi.RichText{
			{
				Type: notionapi.ObjectTypeText,
				Text: &notionapi.Text{Content: s},
			},
		},
	}
}

// extractOutcomeKey extracts the outcome key from a Notion page's properties.
// Returns empty string if not found.
func extractOutcomeKey(page notionapi.Page) string {
	if prop, ok := page.Properties[PropKey]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok {
			if len(rt.RichText) > 0 {
				return rt.RichText[0].PlainText
			}
		}
	}
	return ""
}
