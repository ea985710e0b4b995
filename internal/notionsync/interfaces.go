package notionsync

import (
	"context"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/expense-bot/internal/domain"
	"github.com/dvloznov/expense-bot/internal/ledger"
)

// NotionService defines the Notion operations the export needs.
type NotionService interface {
	// CreatePage creates a new page in a Notion database with the given properties.
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)

	// QueryDatabase queries a Notion database with the given filter.
	QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

// TransactionSource lists ledger rows; every ledger.Repository satisfies it.
type TransactionSource interface {
	List(ctx context.Context, q ledger.Query) ([]domain.Transaction, error)
}

var _ TransactionSource = (ledger.Repository)(nil)
