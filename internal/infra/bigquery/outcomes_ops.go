package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/receipt-ledger/internal/logger"
	"github.com/dvloznov/receipt-ledger/internal/reconcile"
)

const outcomesTable = "reconciliation_outcomes"

// ReportExporter writes reconciliation reports to BigQuery. It holds a shared
// client for the lifetime of the process.
type ReportExporter struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewReportExporter creates an exporter for project.dataset.reconciliation_outcomes.
func NewReportExporter(ctx context.Context, projectID, datasetID string) (*ReportExporter, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewReportExporter: creating client: %w", err)
	}
	return &ReportExporter{client: client, projectID: projectID, datasetID: datasetID}, nil
}

// Close closes the BigQuery client connection.
func (e *ReportExporter) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

func (e *ReportExporter) table() *bigquery.Table {
	// Fully qualified to avoid depending on the client's default project.
	return e.client.DatasetInProject(e.projectID, e.datasetID).Table(outcomesTable)
}

// EnsureTable creates the outcomes table when it does not exist yet.
func (e *ReportExporter) EnsureTable(ctx context.Context) error {
	schema, err := bigquery.InferSchema(OutcomeRow{})
	if err != nil {
		return fmt.Errorf("EnsureTable: infer schema: %w", err)
	}

	meta := &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "reported_ts",
		},
	}
	if err := e.table().Create(ctx, meta); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
			return nil
		}
		return fmt.Errorf("EnsureTable: create table: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("dataset", e.datasetID).
		Str("table", outcomesTable).
		Msg("Created BigQuery table")
	return nil
}

// Export streams every outcome of the report into the outcomes table.
func (e *ReportExporter) Export(ctx context.Context, report *reconcile.Report) error {
	rows := OutcomeRows(report)
	if len(rows) == 0 {
		return nil
	}

	if err := e.table().Inserter().Put(ctx, rows); err != nil {
		return fmt.Errorf("Export: inserting rows: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("report_id", report.ID).
		Int("rows", len(rows)).
		Msg("Exported report to BigQuery")
	return nil
}

// QueryReport reads back the outcomes of one report in order.
func (e *ReportExporter) QueryReport(ctx context.Context, reportID string) ([]*OutcomeRow, error) {
	q := e.client.Query(fmt.Sprintf(`
		SELECT *
		FROM `+"`%s.%s.%s`"+`
		WHERE report_id = @report_id
		ORDER BY position
	`, e.projectID, e.datasetID, outcomesTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "report_id", Value: reportID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryReport: query read: %w", err)
	}

	var rows []*OutcomeRow
	for {
		var r OutcomeRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryReport: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
