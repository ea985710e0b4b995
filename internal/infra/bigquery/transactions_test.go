package bigquery

import (
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/expense-bot/internal/domain"
	"github.com/dvloznov/expense-bot/internal/ledger"
)

func TestRowRoundTrip(t *testing.T) {
	category := "food"
	tx := domain.Transaction{
		ID:        "tx-1",
		UserID:    "u1",
		Kind:      domain.KindExpense,
		Amount:    decimal.RequireFromString("12.34"),
		Currency:  "CAD",
		Category:  &category,
		CreatedAt: time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC),
	}

	row := toRow(&tx)
	assert.Equal(t, "expense", row.Kind)
	assert.True(t, row.CategoryName.Valid)
	assert.False(t, row.Description.Valid)

	back, err := row.toDomain()
	require.NoError(t, err)
	assert.True(t, back.Amount.Equal(tx.Amount))
	assert.Equal(t, "food", *back.Category)
	assert.Nil(t, back.Description)
	assert.True(t, back.CreatedAt.Equal(tx.CreatedAt))
}

func TestInferSchema(t *testing.T) {
	schema, err := bigquery.InferSchema(TransactionRow{})
	require.NoError(t, err)

	types := map[string]bigquery.FieldType{}
	for _, f := range schema {
		types[f.Name] = f.Type
	}
	assert.Equal(t, bigquery.NumericFieldType, types["amount"])
	assert.Equal(t, bigquery.TimestampFieldType, types["created_ts"])
	assert.Equal(t, bigquery.StringFieldType, types["category_name"])
}

func TestBuildListQuery(t *testing.T) {
	cfg := Config{Project: "p", Dataset: "d", Table: "transactions"}

	t.Run("user only", func(t *testing.T) {
		sql, params := buildListQuery(cfg, ledger.Query{UserID: "u1"})
		assert.Contains(t, sql, "FROM `p.d.transactions`")
		assert.Contains(t, sql, "ORDER BY created_ts DESC")
		assert.NotContains(t, sql, "LIMIT")
		require.Len(t, params, 1)
		assert.Equal(t, "user_id", params[0].Name)
	})

	t.Run("all filters", func(t *testing.T) {
		kind := domain.KindIncome
		from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		sql, params := buildListQuery(cfg, ledger.Query{
			UserID: "u1",
			From:   from,
			To:     from.AddDate(0, 1, 0),
			Kind:   &kind,
			Limit:  10,
		})
		assert.Contains(t, sql, "created_ts >= @from_ts")
		assert.Contains(t, sql, "created_ts < @to_ts")
		assert.Contains(t, sql, "kind = @kind")
		assert.Contains(t, sql, "LIMIT @limit")
		assert.Len(t, params, 5)
	})
}
