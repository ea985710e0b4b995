package domain

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Kind is the direction of a transaction. The set is closed.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// ParseKind accepts "income" or "expense" in any case.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindIncome:
		return KindIncome, nil
	case KindExpense:
		return KindExpense, nil
	}
	return "", fmt.Errorf("unknown transaction kind %q, want income or expense", s)
}

// UncategorizedLabel groups transactions without a category in breakdowns.
const UncategorizedLabel = "uncategorized"

// Transaction is one ledger row. Amount is always positive; Kind carries the sign.
type Transaction struct {
	ID          string
	UserID      string
	Kind        Kind
	Amount      decimal.Decimal
	Currency    string
	Category    *string
	Description *string
	RawMessage  *string
	CreatedAt   time.Time
}

// Signed returns the transaction's contribution to the balance.
func (t Transaction) Signed() decimal.Decimal {
	if t.Kind == KindExpense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// CategoryLabel returns the category or "uncategorized".
func (t Transaction) CategoryLabel() string {
	if t.Category == nil || strings.TrimSpace(*t.Category) == "" {
		return UncategorizedLabel
	}
	return *t.Category
}

// NewTransaction is the input to Ledger.CreateTransaction.
type NewTransaction struct {
	UserID      string
	Kind        Kind
	Amount      decimal.Decimal
	Currency    string
	Category    *string
	Description *string
	RawMessage  *string
}

// Totals is the income/expenses/net shape shared by all period summaries.
type Totals struct {
	Income   decimal.Decimal
	Expenses decimal.Decimal
	Net      decimal.Decimal
}

// DailySummary covers one calendar day.
type DailySummary struct {
	Date civil.Date
	Totals
}

// WeeklySummary covers seven days starting at StartDate.
type WeeklySummary struct {
	StartDate civil.Date
	EndDate   civil.Date
	Totals
}

// MonthlySummary covers one calendar month.
type MonthlySummary struct {
	Year  int
	Month time.Month
	Totals
}

// CategoryTotal is one row of a category breakdown.
type CategoryTotal struct {
	Category string
	Income   decimal.Decimal
	Expenses decimal.Decimal
	Count    int
}

// Net is income minus expenses for the category.
func (c CategoryTotal) Net() decimal.Decimal {
	return c.Income.Sub(c.Expenses)
}

// TrendPoint is one day of activity.
type TrendPoint struct {
	Date     civil.Date
	Income   decimal.Decimal
	Expenses decimal.Decimal
}

// TransactionStats summarises a user's whole history.
type TransactionStats struct {
	TotalTransactions int
	IncomeCount       int
	ExpenseCount      int
	AverageIncome     decimal.Decimal
	AverageExpense    decimal.Decimal
	LargestIncome     decimal.Decimal
	LargestExpense    decimal.Decimal
}
