package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
)

// NotionService is the slice of the Notion API the publisher uses.
type NotionService interface {
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabase(ctx context.Context, databaseID string, query *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

// NotionClient implements NotionService over an integration token.
type NotionClient struct {
	api *notionapi.Client
}

var _ NotionService = (*NotionClient)(nil)

// NewNotionClient creates a client for the integration token.
func NewNotionClient(token string) *NotionClient {
	return &NotionClient{api: notionapi.NewClient(notionapi.Token(token))}
}

// CreatePage adds one row to the database.
func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	page, err := n.api.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("CreatePage: database %s: %w", databaseID, err)
	}
	return page, nil
}

// QueryDatabase returns one page of rows matching query.
func (n *NotionClient) QueryDatabase(ctx context.Context, databaseID string, query *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	resp, err := n.api.Database.Query(ctx, notionapi.DatabaseID(databaseID), query)
	if err != nil {
		return nil, fmt.Errorf("QueryDatabase: database %s: %w", databaseID, err)
	}
	return resp, nil
}
