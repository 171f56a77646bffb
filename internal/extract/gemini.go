package extract

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/dvloznov/receipt-ledger/internal/domain"
)

const (
	// DefaultModelName is the default Gemini model used for receipts.
	DefaultModelName = "gemini-2.5-flash"

	defaultTimeout         = 60 * time.Second
	defaultMaxOutputTokens = 2048
)

const receiptPrompt = "You are a financial receipt parser. Given the PDF receipt below, extract the following fields:\n" +
	"- date: the transaction date in YYYY-MM-DD\n" +
	"- amount: number, the total paid, no currency symbols\n" +
	"- description: what the payment was for\n" +
	"- vendor: the payment processor or merchant (Razorpay, Stripe, Amazon, etc.)\n" +
	"- transaction_id: the payment or order reference, or \"Unknown\"\n" +
	"- payment_method: card, UPI, net banking, wallet, etc., or \"Unknown\"\n" +
	"- last_digits: last four digits of the card or account, or \"Unknown\"\n" +
	"- currency: ISO 4217 code, \"INR\" when not stated\n" +
	"Return JSON with only these keys."

// receiptSchema constrains the model output to the eight receipt fields.
var receiptSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"date":           {Type: genai.TypeString, Description: "Transaction date, YYYY-MM-DD"},
		"amount":         {Type: genai.TypeNumber},
		"description":    {Type: genai.TypeString},
		"vendor":         {Type: genai.TypeString},
		"transaction_id": {Type: genai.TypeString},
		"payment_method": {Type: genai.TypeString},
		"last_digits":    {Type: genai.TypeString},
		"currency":       {Type: genai.TypeString},
	},
	Required: []string{"date", "amount", "description", "vendor"},
	PropertyOrdering: []string{
		"date", "amount", "description", "vendor",
		"transaction_id", "payment_method", "last_digits", "currency",
	},
}

// contentGenerator is the slice of *genai.Models the extractor uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures the AI extraction tier.
type GeminiConfig struct {
	Model           string
	APIVersion      string
	Timeout         time.Duration
	MaxOutputTokens int
}

// GeminiExtractor is the AI-assisted extraction tier.
type GeminiExtractor struct {
	models          contentGenerator
	model           string
	timeout         time.Duration
	maxOutputTokens int32
}

// NewGeminiExtractor creates the Gen AI client. Credentials and backend
// selection (Gemini API vs Vertex AI) come from the standard GOOGLE_* env vars.
func NewGeminiExtractor(ctx context.Context, cfg GeminiConfig) (*GeminiExtractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: cfg.APIVersion},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiExtractor: create genai client: %w", err)
	}
	return newGeminiExtractor(client.Models, cfg), nil
}

func newGeminiExtractor(models contentGenerator, cfg GeminiConfig) *GeminiExtractor {
	e := &GeminiExtractor{
		models:          models,
		model:           cfg.Model,
		timeout:         cfg.Timeout,
		maxOutputTokens: int32(cfg.MaxOutputTokens),
	}
	if e.model == "" {
		e.model = DefaultModelName
	}
	if e.timeout <= 0 {
		e.timeout = defaultTimeout
	}
	if e.maxOutputTokens <= 0 {
		e.maxOutputTokens = defaultMaxOutputTokens
	}
	return e
}

// Extract sends the PDF to the model and parses its schema-constrained JSON.
// The call is bounded by the configured timeout.
func (e *GeminiExtractor) Extract(ctx context.Context, doc []byte) (*domain.ExtractedReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: receiptPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: "application/pdf",
						Data:     doc,
					},
				},
			},
		},
	}

	resp, err := e.models.GenerateContent(ctx, e.model, contents, e.generationConfig())
	if err != nil {
		return nil, fmt.Errorf("GeminiExtractor: generate content: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("GeminiExtractor: nil response from model")
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("GeminiExtractor: empty response from model")
	}

	receipt, err := receiptFromModelOutput(rawText)
	if err != nil {
		return nil, fmt.Errorf("GeminiExtractor: %w", err)
	}
	receipt.Tier = TierGemini
	return receipt, nil
}

func (e *GeminiExtractor) generationConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.2),
		TopP:             genai.Ptr[float32](1),
		MaxOutputTokens:  e.maxOutputTokens,
		ResponseMIMEType: "application/json",
		ResponseSchema:   receiptSchema,
	}
}
