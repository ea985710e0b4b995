// Package bigquery stores ledger transactions in a BigQuery table.
package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/expense-bot/internal/domain"
)

type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	UserID        string `bigquery:"user_id"`        // REQUIRED
	Kind          string `bigquery:"kind"`           // REQUIRED, income|expense

	Amount   *big.Rat `bigquery:"amount"`   // REQUIRED NUMERIC
	Currency string   `bigquery:"currency"` // REQUIRED STRING

	CategoryName bigquery.NullString `bigquery:"category_name"` // NULLABLE
	Description  bigquery.NullString `bigquery:"description"`   // NULLABLE
	RawMessage   bigquery.NullString `bigquery:"raw_message"`   // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

func nullString(s *string) bigquery.NullString {
	if s == nil {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: *s, Valid: true}
}

func stringPtr(ns bigquery.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.StringVal
	return &s
}

func toRow(tx *domain.Transaction) *TransactionRow {
	return &TransactionRow{
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Kind:          string(tx.Kind),
		Amount:        tx.Amount.Rat(),
		Currency:      tx.Currency,
		CategoryName:  nullString(tx.Category),
		Description:   nullString(tx.Description),
		RawMessage:    nullString(tx.RawMessage),
		CreatedTS:     tx.CreatedAt.UTC(),
	}
}

func (r *TransactionRow) toDomain() (domain.Transaction, error) {
	amount := decimal.Zero
	if r.Amount != nil {
		// NUMERIC carries at most nine fractional digits.
		d, err := decimal.NewFromString(r.Amount.FloatString(9))
		if err != nil {
			return domain.Transaction{}, err
		}
		amount = d
	}
	return domain.Transaction{
		ID:          r.TransactionID,
		UserID:      r.UserID,
		Kind:        domain.Kind(r.Kind),
		Amount:      amount,
		Currency:    r.Currency,
		Category:    stringPtr(r.CategoryName),
		Description: stringPtr(r.Description),
		RawMessage:  stringPtr(r.RawMessage),
		CreatedAt:   r.CreatedTS.UTC(),
	}, nil
}
