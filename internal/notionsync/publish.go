package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/receipt-ledger/internal/logger"
	"github.com/dvloznov/receipt-ledger/internal/reconcile"
)

// BatchSize is the number of outcomes published between progress logs.
const BatchSize = 100

// Publisher writes reconciliation reports into a Notion database, one page
// per outcome. Publishing the same report twice creates no duplicate pages.
type Publisher struct {
	notion     NotionService
	databaseID string
	dryRun     bool
}

// NewPublisher creates a publisher for the given database.
func NewPublisher(notion NotionService, databaseID string, dryRun bool) *Publisher {
	return &Publisher{notion: notion, databaseID: databaseID, dryRun: dryRun}
}

// Export publishes the report. It satisfies reconcile.Sink.
func (p *Publisher) Export(ctx context.Context, report *reconcile.Report) error {
	log := logger.FromContext(ctx).With().Str("report_id", report.ID).Logger()

	log.Info().
		Int("outcomes", len(report.Outcomes)).
		Bool("dry_run", p.dryRun).
		Msg("Publishing report to Notion")

	existing, err := p.existingKeys(ctx, report.ID)
	if err != nil {
		return fmt.Errorf("Export: %w", err)
	}

	var created, skipped, failed int
	for i := range report.Outcomes {
		if i > 0 && i%BatchSize == 0 {
			log.Info().Int("processed", i).Msg("Notion publish progress")
		}

		key := OutcomeKey(report.ID, i)
		if existing[key] {
			skipped++
			continue
		}

		props := OutcomeToNotionProperties(report.ID, i, &report.Outcomes[i])
		if p.dryRun {
			log.Info().Str("key", key).Msg("[DRY RUN] Would create Notion page")
			created++
			continue
		}

		if _, err := p.notion.CreatePage(ctx, p.databaseID, props); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to create Notion page")
			failed++
			continue
		}
		created++
	}

	log.Info().
		Int("created", created).
		Int("skipped", skipped).
		Int("failed", failed).
		Msg("Notion publish completed")

	if failed > 0 {
		return fmt.Errorf("Export: %d of %d pages failed", failed, len(report.Outcomes))
	}
	return nil
}

// existingKeys returns the outcome keys already published for a report.
// Handles pagination automatically.
func (p *Publisher) existingKeys(ctx context.Context, reportID string) (map[string]bool, error) {
	keys := make(map[string]bool)
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			Filter: notionapi.PropertyFilter{
				Property: PropReportID,
				RichText: &notionapi.TextFilterCondition{Equals: reportID},
			},
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := p.notion.QueryDatabase(ctx, p.databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("existingKeys: %w", err)
		}

		for _, page := range resp.Results {
			if key := extractOutcomeKey(page); key != "" {
				keys[key] = true
			}
		}

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return keys, nil
}
