package assistant

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/dvloznov/expense-bot/internal/domain"
)

func TestPlainAmount(t *testing.T) {
	tests := map[string]string{
		"30":      "30.0",
		"30.00":   "30.0",
		"12.5":    "12.5",
		"1970.25": "1970.25",
		"0.1":     "0.1",
	}
	for in, want := range tests {
		assert.Equal(t, want, plainAmount(decimal.RequireFromString(in)), in)
	}
}

func TestFormatBreakdown_CapsAtTen(t *testing.T) {
	rows := make([]domain.CategoryTotal, 0, 13)
	for i := 0; i < 13; i++ {
		rows = append(rows, domain.CategoryTotal{
			Category: fmt.Sprintf("cat%02d", i),
			Income:   decimal.Zero,
			Expenses: decimal.NewFromInt(int64(100 - i)),
			Count:    1,
		})
	}

	out := formatBreakdown(rows)
	lines := strings.Split(out, "\n")

	assert.Equal(t, "📊 Category Breakdown:", lines[0])
	assert.Equal(t, "", lines[1])
	assert.Equal(t, "cat00: Income 0.00, Expenses 100.00, Net -100.00 (1 transactions)", lines[2])
	assert.Len(t, lines, 2+10+1)
	assert.Equal(t, "... and 3 more categories", lines[len(lines)-1])
	assert.NotContains(t, out, "cat10")
}

func TestFormatEmptyReads(t *testing.T) {
	assert.Equal(t, "No transactions found in this period.", formatBreakdown(nil))
	assert.Equal(t, "No transaction data found for the last 30 days.", formatTrends(nil, 30, "CAD"))
	assert.Equal(t, "No transactions found.", formatTransactions(nil, time.UTC))
}

func TestFormatStats_Zero(t *testing.T) {
	st := domain.TransactionStats{
		AverageIncome:  decimal.Zero,
		AverageExpense: decimal.Zero,
		LargestIncome:  decimal.Zero,
		LargestExpense: decimal.Zero,
	}
	want := "📊 Transaction Statistics:\nTotal Transactions: 0\nIncome Transactions: 0\nExpense Transactions: 0\n" +
		"Average Income: 0.00 CAD\nAverage Expense: 0.00 CAD\nLargest Income: 0.00 CAD\nLargest Expense: 0.00 CAD"
	assert.Equal(t, want, formatStats(st, "CAD"))
}

func TestFormatTrends_AverageOverActiveDays(t *testing.T) {
	points := []domain.TrendPoint{
		{Income: decimal.Zero, Expenses: decimal.NewFromInt(10)},
		{Income: decimal.NewFromInt(5), Expenses: decimal.NewFromInt(0)},
		{Income: decimal.Zero, Expenses: decimal.NewFromInt(1)},
	}
	out := formatTrends(points, 7, "CAD")
	assert.Contains(t, out, "Average Daily Expenses: 3.67 CAD")
	assert.Contains(t, out, "Net: -6.00 CAD")
}

func TestFormatCreated_NoCategory(t *testing.T) {
	blank := "  "
	tx := domain.Transaction{Kind: domain.KindIncome, Amount: decimal.NewFromInt(2000), Currency: "CAD", Category: &blank}
	assert.Equal(t, "✅ Created income: 2000.0 CAD (no category)", formatCreated(tx))
}
