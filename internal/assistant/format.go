package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/expense-bot/internal/domain"
)

const maxBreakdownCategories = 10

// money renders a total with two decimals.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// plainAmount renders a stored amount with at least one fractional digit: 30 → "30.0".
func plainAmount(d decimal.Decimal) string {
	s := d.String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func categoryOrDefault(c *string) string {
	if c == nil || strings.TrimSpace(*c) == "" {
		return "no category"
	}
	return *c
}

func formatCreated(tx domain.Transaction) string {
	return fmt.Sprintf("✅ Created %s: %s %s (%s)", tx.Kind, plainAmount(tx.Amount), tx.Currency, categoryOrDefault(tx.Category))
}

func formatBalance(bal decimal.Decimal, currency string) string {
	return fmt.Sprintf("Balance: %s %s", money(bal), currency)
}

func formatTransactions(txs []domain.Transaction, loc *time.Location) string {
	if len(txs) == 0 {
		return "No transactions found."
	}
	lines := make([]string, 0, len(txs)+1)
	lines = append(lines, "Transactions:\n")
	for _, tx := range txs {
		lines = append(lines, fmt.Sprintf("- %s: %s %s (%s) - %s",
			tx.Kind, plainAmount(tx.Amount), tx.Currency, categoryOrDefault(tx.Category),
			tx.CreatedAt.In(loc).Format("2006-01-02 15:04")))
	}
	return strings.Join(lines, "\n")
}

func formatTotals(header string, t domain.Totals, currency string) string {
	return fmt.Sprintf("%s\nIncome: %s %s\nExpenses: %s %s\nNet: %s %s",
		header, money(t.Income), currency, money(t.Expenses), currency, money(t.Net), currency)
}

func formatDaily(s domain.DailySummary, currency string) string {
	return formatTotals(fmt.Sprintf("📅 Daily Summary (%s):", s.Date), s.Totals, currency)
}

func formatWeekly(s domain.WeeklySummary, currency string) string {
	return formatTotals(fmt.Sprintf("📅 Weekly Summary (%s to %s):", s.StartDate, s.EndDate), s.Totals, currency)
}

func formatMonthly(s domain.MonthlySummary, currency string) string {
	return formatTotals(fmt.Sprintf("📅 Monthly Summary (%s %d):", s.Month, s.Year), s.Totals, currency)
}

func formatBreakdown(rows []domain.CategoryTotal) string {
	if len(rows) == 0 {
		return "No transactions found in this period."
	}
	shown := rows
	if len(shown) > maxBreakdownCategories {
		shown = shown[:maxBreakdownCategories]
	}

	lines := make([]string, 0, len(shown)+2)
	lines = append(lines, "📊 Category Breakdown:\n")
	for _, ct := range shown {
		lines = append(lines, fmt.Sprintf("%s: Income %s, Expenses %s, Net %s (%d transactions)",
			ct.Category, money(ct.Income), money(ct.Expenses), money(ct.Net()), ct.Count))
	}
	if rest := len(rows) - len(shown); rest > 0 {
		lines = append(lines, fmt.Sprintf("... and %d more categories", rest))
	}
	return strings.Join(lines, "\n")
}

func formatTrends(points []domain.TrendPoint, days int, currency string) string {
	if len(points) == 0 {
		return fmt.Sprintf("No transaction data found for the last %d days.", days)
	}
	income, expenses := decimal.Zero, decimal.Zero
	for _, p := range points {
		income = income.Add(p.Income)
		expenses = expenses.Add(p.Expenses)
	}
	avg := expenses.Div(decimal.NewFromInt(int64(len(points))))

	return fmt.Sprintf("📈 Spending Trends (Last %d days):\nTotal Income: %s %s\nTotal Expenses: %s %s\nAverage Daily Expenses: %s %s\nNet: %s %s",
		days,
		money(income), currency,
		money(expenses), currency,
		money(avg), currency,
		money(income.Sub(expenses)), currency)
}

func formatStats(st domain.TransactionStats, currency string) string {
	return fmt.Sprintf("📊 Transaction Statistics:\nTotal Transactions: %d\nIncome Transactions: %d\nExpense Transactions: %d\nAverage Income: %s %s\nAverage Expense: %s %s\nLargest Income: %s %s\nLargest Expense: %s %s",
		st.TotalTransactions, st.IncomeCount, st.ExpenseCount,
		money(st.AverageIncome), currency,
		money(st.AverageExpense), currency,
		money(st.LargestIncome), currency,
		money(st.LargestExpense), currency)
}
