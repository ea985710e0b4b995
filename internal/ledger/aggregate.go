package ledger

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/expense-bot/internal/domain"
)

func totalize(txs []domain.Transaction) domain.Totals {
	income, expenses := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		if tx.Kind == domain.KindIncome {
			income = income.Add(tx.Amount)
		} else {
			expenses = expenses.Add(tx.Amount)
		}
	}
	return domain.Totals{Income: income, Expenses: expenses, Net: income.Sub(expenses)}
}

// breakdown groups by category label, largest activity first, ties by name.
func breakdown(txs []domain.Transaction) []domain.CategoryTotal {
	byLabel := make(map[string]*domain.CategoryTotal)
	for _, tx := range txs {
		label := tx.CategoryLabel()
		ct, ok := byLabel[label]
		if !ok {
			ct = &domain.CategoryTotal{Category: label, Income: decimal.Zero, Expenses: decimal.Zero}
			byLabel[label] = ct
		}
		if tx.Kind == domain.KindIncome {
			ct.Income = ct.Income.Add(tx.Amount)
		} else {
			ct.Expenses = ct.Expenses.Add(tx.Amount)
		}
		ct.Count++
	}

	out := make([]domain.CategoryTotal, 0, len(byLabel))
	for _, ct := range byLabel {
		out = append(out, *ct)
	}
	sort.Slice(out, func(i, j int) bool {
		ai := out[i].Income.Add(out[i].Expenses)
		aj := out[j].Income.Add(out[j].Expenses)
		if c := ai.Cmp(aj); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func trends(txs []domain.Transaction, loc *time.Location) []domain.TrendPoint {
	byDay := make(map[civil.Date]*domain.TrendPoint)
	for _, tx := range txs {
		day := civil.DateOf(tx.CreatedAt.In(loc))
		p, ok := byDay[day]
		if !ok {
			p = &domain.TrendPoint{Date: day, Income: decimal.Zero, Expenses: decimal.Zero}
			byDay[day] = p
		}
		if tx.Kind == domain.KindIncome {
			p.Income = p.Income.Add(tx.Amount)
		} else {
			p.Expenses = p.Expenses.Add(tx.Amount)
		}
	}

	out := make([]domain.TrendPoint, 0, len(byDay))
	for _, p := range byDay {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func stats(txs []domain.Transaction) domain.TransactionStats {
	st := domain.TransactionStats{
		AverageIncome:  decimal.Zero,
		AverageExpense: decimal.Zero,
		LargestIncome:  decimal.Zero,
		LargestExpense: decimal.Zero,
	}
	incomeSum, expenseSum := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		st.TotalTransactions++
		if tx.Kind == domain.KindIncome {
			st.IncomeCount++
			incomeSum = incomeSum.Add(tx.Amount)
			if tx.Amount.GreaterThan(st.LargestIncome) {
				st.LargestIncome = tx.Amount
			}
			continue
		}
		st.ExpenseCount++
		expenseSum = expenseSum.Add(tx.Amount)
		if tx.Amount.GreaterThan(st.LargestExpense) {
			st.LargestExpense = tx.Amount
		}
	}
	if st.IncomeCount > 0 {
		st.AverageIncome = incomeSum.Div(decimal.NewFromInt(int64(st.IncomeCount)))
	}
	if st.ExpenseCount > 0 {
		st.AverageExpense = expenseSum.Div(decimal.NewFromInt(int64(st.ExpenseCount)))
	}
	return st
}
