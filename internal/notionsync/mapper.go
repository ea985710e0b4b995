package notionsync

import (
	"fmt"
	"strings"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/expense-bot/internal/domain"
)

// Property names of the Notion transactions database.
const (
	PropName          = "Name"
	PropTransactionID = "Transaction ID"
	PropType          = "Type"
	PropAmount        = "Amount"
	PropCurrency      = "Currency"
	PropCategory      = "Category"
	PropDescription   = "Description"
	PropDate          = "Date"
)

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}

// pageTitle reads like "Expense: lunch" or "Income: salary".
func pageTitle(tx domain.Transaction) string {
	label := tx.CategoryLabel()
	if tx.Description != nil && strings.TrimSpace(*tx.Description) != "" {
		label = strings.TrimSpace(*tx.Description)
	}
	kind := string(tx.Kind)
	if kind != "" {
		kind = strings.ToUpper(kind[:1]) + kind[1:]
	}
	return fmt.Sprintf("%s: %s", kind, label)
}

// TransactionToNotionProperties converts a ledger transaction to Notion properties.
func TransactionToNotionProperties(tx domain.Transaction) notionapi.Properties {
	created := notionapi.Date(tx.CreatedAt)

	props := notionapi.Properties{
		PropName: notionapi.TitleProperty{
			Title: richText(pageTitle(tx)),
		},
		PropTransactionID: notionapi.RichTextProperty{
			RichText: richText(tx.ID),
		},
		PropType: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(tx.Kind)},
		},
		PropAmount: notionapi.NumberProperty{
			Number: tx.Amount.InexactFloat64(),
		},
		PropCurrency: notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.Currency},
		},
		PropCategory: notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.CategoryLabel()},
		},
		PropDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &created},
		},
	}

	if tx.Description != nil && *tx.Description != "" {
		props[PropDescription] = notionapi.RichTextProperty{
			RichText: richText(*tx.Description),
		}
	}

	return props
}

// extractTransactionID returns the page's Transaction ID, or "" when unset.
func extractTransactionID(page notionapi.Page) string {
	if prop, ok := page.Properties[PropTransactionID]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok && len(rt.RichText) > 0 {
			return rt.RichText[0].PlainText
		}
	}
	return ""
}
