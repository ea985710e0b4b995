package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/expense-bot/internal/domain"
)

// fakeClock returns a settable instant.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func strPtr(s string) *string { return &s }

func newTestService(t *testing.T, at time.Time) (*Service, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: at}
	return NewService(NewMemoryRepository(), WithClock(clock.Now)), clock
}

func add(t *testing.T, s *Service, user string, kind domain.Kind, amount string, category *string) domain.Transaction {
	t.Helper()
	tx, err := s.CreateTransaction(context.Background(), domain.NewTransaction{
		UserID:   user,
		Kind:     kind,
		Amount:   decimal.RequireFromString(amount),
		Currency: "cad",
		Category: category,
	})
	require.NoError(t, err)
	return tx
}

// Wednesday.
var wed = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

func TestCreateTransaction_Validation(t *testing.T) {
	s, _ := newTestService(t, wed)
	tests := []struct {
		name string
		in   domain.NewTransaction
	}{
		{"missing user", domain.NewTransaction{Kind: domain.KindIncome, Amount: decimal.NewFromInt(1), Currency: "CAD"}},
		{"bad kind", domain.NewTransaction{UserID: "u", Kind: "refund", Amount: decimal.NewFromInt(1), Currency: "CAD"}},
		{"zero amount", domain.NewTransaction{UserID: "u", Kind: domain.KindIncome, Amount: decimal.Zero, Currency: "CAD"}},
		{"negative amount", domain.NewTransaction{UserID: "u", Kind: domain.KindExpense, Amount: decimal.NewFromInt(-5), Currency: "CAD"}},
		{"bad currency", domain.NewTransaction{UserID: "u", Kind: domain.KindExpense, Amount: decimal.NewFromInt(5), Currency: "DOLLARS"}},
		{"too many decimal places", domain.NewTransaction{UserID: "u", Kind: domain.KindExpense, Amount: decimal.RequireFromString("1e-8"), Currency: "CAD"}},
		{"too many integer digits", domain.NewTransaction{UserID: "u", Kind: domain.KindIncome, Amount: decimal.RequireFromString("1e16"), Currency: "CAD"}},
		{"huge exponent", domain.NewTransaction{UserID: "u", Kind: domain.KindIncome, Amount: decimal.RequireFromString("1e50000000"), Currency: "CAD"}},
		{"tiny exponent", domain.NewTransaction{UserID: "u", Kind: domain.KindExpense, Amount: decimal.RequireFromString("1e-50000000"), Currency: "CAD"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateTransaction(context.Background(), tt.in)
			assert.True(t, errors.Is(err, ErrInvalidTransaction), "got %v", err)
		})
	}
}

func TestCheckAmountPrecision(t *testing.T) {
	for _, ok := range []string{"0.0001", "30", "1.50000", "9999999999999999.9999", "-12.34", "0"} {
		assert.NoError(t, CheckAmountPrecision(decimal.RequireFromString(ok)), ok)
	}

	tests := []struct {
		amount string
		want   string
	}{
		{"0.00001", "at most 4 decimal places"},
		{"1e-50000000", "at most 4 decimal places"},
		{"10000000000000000", "at most 16 integer digits"},
		{"-1e17", "at most 16 integer digits"},
		{"1e50000000", "at most 16 integer digits"},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.ErrorContains(t, CheckAmountPrecision(decimal.RequireFromString(tt.amount)), tt.want)
		})
	}
}

func TestCreateTransaction_AssignsIDAndMonotonicTimestamps(t *testing.T) {
	s, _ := newTestService(t, wed)

	first := add(t, s, "u1", domain.KindExpense, "10", nil)
	second := add(t, s, "u1", domain.KindExpense, "10", nil)

	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, second.CreatedAt.After(first.CreatedAt))
	assert.Equal(t, "CAD", first.Currency)
}

func TestBalance(t *testing.T) {
	s, _ := newTestService(t, wed)
	ctx := context.Background()

	bal, err := s.Balance(ctx, "nobody")
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	add(t, s, "u1", domain.KindIncome, "2000", nil)
	add(t, s, "u1", domain.KindExpense, "30", strPtr("food"))
	add(t, s, "u1", domain.KindExpense, "0.10", nil)
	add(t, s, "u1", domain.KindExpense, "0.20", nil)
	add(t, s, "u2", domain.KindExpense, "999", nil)

	bal, err = s.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "1969.70", bal.StringFixed(2))
}

func TestTransactions_NewestFirstWithFilterAndLimit(t *testing.T) {
	s, clock := newTestService(t, wed)
	for i := 0; i < 5; i++ {
		clock.t = wed.Add(time.Duration(i) * time.Minute)
		kind := domain.KindExpense
		if i%2 == 0 {
			kind = domain.KindIncome
		}
		add(t, s, "u1", kind, "1", nil)
	}

	all, err := s.Transactions(context.Background(), "u1", 0, nil)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.True(t, all[0].CreatedAt.After(all[4].CreatedAt))

	income := domain.KindIncome
	incomes, err := s.Transactions(context.Background(), "u1", 2, &income)
	require.NoError(t, err)
	require.Len(t, incomes, 2)
	for _, tx := range incomes {
		assert.Equal(t, domain.KindIncome, tx.Kind)
	}
}

func TestPeriodSummaries(t *testing.T) {
	s, clock := newTestService(t, wed)
	ctx := context.Background()

	// Monday of the same week, the previous Sunday and the first of the month.
	clock.t = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	add(t, s, "u1", domain.KindIncome, "100", nil)
	clock.t = time.Date(2025, 3, 9, 23, 59, 0, 0, time.UTC)
	add(t, s, "u1", domain.KindExpense, "40", nil)
	clock.t = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	add(t, s, "u1", domain.KindExpense, "5", nil)
	clock.t = wed
	add(t, s, "u1", domain.KindExpense, "12.5", nil)

	daily, err := s.DailySummary(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2025, Month: 3, Day: 12}, daily.Date)
	assert.Equal(t, "12.50", daily.Expenses.StringFixed(2))
	assert.Equal(t, "-12.50", daily.Net.StringFixed(2))

	weekly, err := s.WeeklySummary(ctx, "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2025, Month: 3, Day: 10}, weekly.StartDate)
	assert.Equal(t, civil.Date{Year: 2025, Month: 3, Day: 16}, weekly.EndDate)
	assert.Equal(t, "100.00", weekly.Income.StringFixed(2))
	assert.Equal(t, "87.50", weekly.Net.StringFixed(2))

	monthly, err := s.MonthlySummary(ctx, "u1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, time.March, monthly.Month)
	assert.Equal(t, "57.50", monthly.Expenses.StringFixed(2))

	feb := 2
	prev, err := s.MonthlySummary(ctx, "u1", nil, &feb)
	require.NoError(t, err)
	assert.True(t, prev.Income.IsZero())
	assert.True(t, prev.Expenses.IsZero())

	bad := 13
	_, err = s.MonthlySummary(ctx, "u1", nil, &bad)
	assert.Error(t, err)
}

func TestCategoryBreakdown(t *testing.T) {
	s, clock := newTestService(t, wed)
	ctx := context.Background()

	add(t, s, "u1", domain.KindExpense, "30", strPtr("food"))
	add(t, s, "u1", domain.KindExpense, "20", strPtr("food"))
	add(t, s, "u1", domain.KindIncome, "500", strPtr("salary"))
	add(t, s, "u1", domain.KindExpense, "7", nil)
	add(t, s, "u1", domain.KindExpense, "3", strPtr("  "))
	clock.t = wed.AddDate(0, 0, -45)
	add(t, s, "u1", domain.KindExpense, "1000", strPtr("rent"))
	clock.t = wed

	rows, err := s.CategoryBreakdown(ctx, "u1", nil, nil, nil)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "salary", rows[0].Category)
	assert.Equal(t, "food", rows[1].Category)
	assert.Equal(t, 2, rows[1].Count)
	assert.Equal(t, "50", rows[1].Expenses.String())
	assert.Equal(t, domain.UncategorizedLabel, rows[2].Category)
	assert.Equal(t, 2, rows[2].Count)

	only, err := s.CategoryBreakdown(ctx, "u1", nil, nil, strPtr("FOOD"))
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "food", only[0].Category)

	start := civil.Date{Year: 2025, Month: 1, Day: 1}
	withRent, err := s.CategoryBreakdown(ctx, "u1", &start, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "rent", withRent[0].Category)

	end := civil.Date{Year: 2024, Month: 12, Day: 1}
	_, err = s.CategoryBreakdown(ctx, "u1", &start, &end, nil)
	assert.Error(t, err)
}

func TestSpendingTrends(t *testing.T) {
	s, clock := newTestService(t, wed)
	ctx := context.Background()

	clock.t = wed.AddDate(0, 0, -6)
	add(t, s, "u1", domain.KindExpense, "10", nil)
	clock.t = wed.AddDate(0, 0, -7)
	add(t, s, "u1", domain.KindExpense, "99", nil)
	clock.t = wed
	add(t, s, "u1", domain.KindExpense, "5", nil)
	add(t, s, "u1", domain.KindIncome, "50", nil)

	points, err := s.SpendingTrends(ctx, "u1", 7)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, civil.Date{Year: 2025, Month: 3, Day: 6}, points[0].Date)
	assert.Equal(t, civil.Date{Year: 2025, Month: 3, Day: 12}, points[1].Date)
	assert.Equal(t, "50", points[1].Income.String())

	_, err = s.SpendingTrends(ctx, "u1", 0)
	assert.Error(t, err)
	_, err = s.SpendingTrends(ctx, "u1", 366)
	assert.Error(t, err)
}

func TestTransactionStats(t *testing.T) {
	s, _ := newTestService(t, wed)
	ctx := context.Background()

	empty, err := s.TransactionStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalTransactions)
	assert.True(t, empty.AverageIncome.IsZero())

	add(t, s, "u1", domain.KindIncome, "100", nil)
	add(t, s, "u1", domain.KindIncome, "50", nil)
	add(t, s, "u1", domain.KindExpense, "10", nil)

	st, err := s.TransactionStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalTransactions)
	assert.Equal(t, 2, st.IncomeCount)
	assert.Equal(t, 1, st.ExpenseCount)
	assert.Equal(t, "75.00", st.AverageIncome.StringFixed(2))
	assert.Equal(t, "100.00", st.LargestIncome.StringFixed(2))
	assert.Equal(t, "10.00", st.LargestExpense.StringFixed(2))
}

func TestMondayOf(t *testing.T) {
	tests := []struct {
		in, want civil.Date
	}{
		{civil.Date{Year: 2025, Month: 3, Day: 10}, civil.Date{Year: 2025, Month: 3, Day: 10}},
		{civil.Date{Year: 2025, Month: 3, Day: 16}, civil.Date{Year: 2025, Month: 3, Day: 10}},
		{civil.Date{Year: 2025, Month: 3, Day: 1}, civil.Date{Year: 2025, Month: 2, Day: 24}},
	}
	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, mondayOf(tt.in, time.UTC))
		})
	}
}
