// Package notionsync exports ledger transactions to a Notion database.
package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/expense-bot/internal/ledger"
	"github.com/dvloznov/expense-bot/internal/logger"
)

// BatchSize is the Notion query page size and the logging batch for creates.
const BatchSize = 100

// SyncOptions selects what to export. From is inclusive and To exclusive;
// zero values leave that side open.
type SyncOptions struct {
	UserID string
	From   time.Time
	To     time.Time
	DryRun bool
}

// SyncResult counts what a sync did or, in dry-run mode, would do.
type SyncResult struct {
	Created int
	Skipped int
	Failed  int
	Total   int
}

// SyncTransactions creates one Notion page per ledger transaction that the
// database does not already hold, matched on the Transaction ID property.
// Individual page failures are logged and counted, not returned.
func SyncTransactions(ctx context.Context, source TransactionSource, notionClient NotionService, notionDBID string, opts SyncOptions) (SyncResult, error) {
	log := logger.FromContext(ctx)
	var result SyncResult

	if opts.UserID == "" {
		return result, fmt.Errorf("SyncTransactions: user id is required")
	}

	log.Info().
		Str("user_id", opts.UserID).
		Time("from", opts.From).
		Time("to", opts.To).
		Bool("dry_run", opts.DryRun).
		Msg("Starting transaction export to Notion")

	transactions, err := source.List(ctx, ledger.Query{UserID: opts.UserID, From: opts.From, To: opts.To})
	if err != nil {
		return result, fmt.Errorf("SyncTransactions: list transactions: %w", err)
	}
	result.Total = len(transactions)

	pages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return result, fmt.Errorf("SyncTransactions: %w", err)
	}

	existing := make(map[string]bool, len(pages))
	for _, page := range pages {
		if id := extractTransactionID(page); id != "" {
			existing[id] = true
		}
	}

	log.Info().
		Int("transaction_count", len(transactions)).
		Int("notion_page_count", len(pages)).
		Msg("Loaded transactions and existing Notion pages")

	// Oldest first so the Notion database fills in chronological order.
	for i := len(transactions) - 1; i >= 0; i-- {
		tx := transactions[i]
		if existing[tx.ID] {
			result.Skipped++
			continue
		}

		if opts.DryRun {
			log.Info().Str("transaction_id", tx.ID).Msg("[DRY RUN] Would create Notion page")
			result.Created++
			continue
		}

		page, err := notionClient.CreatePage(ctx, notionDBID, TransactionToNotionProperties(tx))
		if err != nil {
			log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("Failed to create Notion page")
			result.Failed++
			continue
		}
		existing[tx.ID] = true
		result.Created++

		log.Debug().
			Str("transaction_id", tx.ID).
			Str("page_id", string(page.ID)).
			Msg("Created Notion page")
		if result.Created%BatchSize == 0 {
			log.Info().Int("created", result.Created).Msg("Export progress")
		}
	}

	log.Info().
		Int("created", result.Created).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Int("total", result.Total).
		Msg("Transaction export completed")

	return result, nil
}

// queryAllNotionPages follows pagination until the database is exhausted.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: BatchSize,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
