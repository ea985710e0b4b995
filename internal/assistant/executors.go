package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/expense-bot/internal/domain"
	"github.com/dvloznov/expense-bot/internal/ledger"
)

// LedgerConfig configures the ledger-backed executors.
type LedgerConfig struct {
	// Currency is the default for new transactions and the suffix on totals.
	Currency string
	// Location renders transaction timestamps.
	Location *time.Location
}

func (c LedgerConfig) withDefaults() LedgerConfig {
	if c.Currency == "" {
		c.Currency = "CAD"
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	return c
}

// NewLedgerRegistry registers one executor per operation, all backed by l.
func NewLedgerRegistry(l ledger.Ledger, cfg LedgerConfig) (*Registry, error) {
	cfg = cfg.withDefaults()
	base := ledgerExecutor{ledger: l, cfg: cfg}
	return NewRegistry(
		&createExpenseExecutor{base},
		&createIncomeExecutor{base},
		&balanceExecutor{base},
		&transactionsExecutor{base},
		&dailySummaryExecutor{base},
		&weeklySummaryExecutor{base},
		&monthlySummaryExecutor{base},
		&categoryBreakdownExecutor{base},
		&spendingTrendsExecutor{base},
		&transactionStatsExecutor{base},
	)
}

type ledgerExecutor struct {
	ledger ledger.Ledger
	cfg    LedgerConfig
}

func (e ledgerExecutor) create(ctx context.Context, kind domain.Kind, a TransactionArgs) (string, error) {
	tx, err := e.ledger.CreateTransaction(ctx, domain.NewTransaction{
		UserID:      a.UserID,
		Kind:        kind,
		Amount:      a.Amount,
		Currency:    a.Currency,
		Category:    a.Category,
		Description: a.Description,
		RawMessage:  a.RawMessage,
	})
	if err != nil {
		return "", err
	}
	return formatCreated(tx), nil
}

func wrongArgs(op Operation, args Args) error {
	return fmt.Errorf("arguments of type %T do not belong to %s", args, op)
}

var transactionParams = []Param{
	{Name: "amount", Type: "number", Required: true, Doc: "positive amount"},
	{Name: "currency", Type: "string", Doc: "3-letter code, default applies when absent"},
	{Name: "category", Type: "string | null", Doc: "short label such as food, rent, salary"},
	{Name: "description", Type: "string | null", Doc: "free text"},
}

type createExpenseExecutor struct{ ledgerExecutor }

func (e *createExpenseExecutor) Descriptor() Descriptor {
	return Descriptor{
		Operation:   OpCreateExpense,
		Description: "record money the user spent",
		Params:      transactionParams,
		Examples: []Example{
			{Message: "I spent 30 dollars on food", Arguments: `{"amount": 30, "currency": "USD", "category": "food"}`},
		},
		Mutates: true,
		Decode:  decodeCreateExpense,
	}
}

func (e *createExpenseExecutor) Execute(ctx context.Context, args Args) (string, error) {
	a, ok := args.(CreateExpenseArgs)
	if !ok {
		return "", wrongArgs(OpCreateExpense, args)
	}
	return e.create(ctx, domain.KindExpense, a.TransactionArgs)
}

type createIncomeExecutor struct{ ledgerExecutor }

func (e *createIncomeExecutor) Descriptor() Descriptor {
	return Descriptor{
		Operation:   OpCreateIncome,
		Description: "record money the user received",
		Params:      transactionParams,
		Examples: []Example{
			{Message: "I got paid 2000", Arguments: fmt.Sprintf(`{"amount": 2000, "currency": %q}`, e.cfg.Currency)},
		},
		Mutates: true,
		Decode:  decodeCreateIncome,
	}
}

func (e *createIncomeExecutor) Execute(ctx context.Context, args Args) (string, error) {
	a, ok := args.(CreateIncomeArgs)
	if !ok {
		return "", wrongArgs(OpCreateIncome, args)
	}
	return e.create(ctx, domain.KindIncome, a.TransactionArgs)
}

type balanceExecutor struct{ ledgerExecutor }

func (e *balanceExecutor) Descriptor() Descriptor {
	return Descriptor{
		Operation:   OpGetBalance,
		Description: "current balance, total income minus total expenses (no arguments)",
		Examples: []Example{
			{Message: "what is my balance?", Arguments: `{}`},
		},
		Decode: decodeBalance,
	}
}

func (e *balanceExecutor) Execute(ctx context.Context, args Args) (string, error) {
	a, ok := args.(BalanceArgs)
	if !ok {
		return "", wrongArgs(OpGetBalance, args)
	}
	bal, err := e.ledger.Balance(ctx, a.UserID)
	if err != nil {
		return "", err
	}
	return formatBalance(bal, e.cfg.Currency), nil
}

type transactionsExecutor struct{ ledgerExecutor }

func (e *transactionsExecutor) Descriptor() Descriptor {
	return Descriptor{
		Operation:   OpGetTransactions,
		Description: "list recent transactions, newest first",
		Params: []Param{
			{Name: "limit", Type: "number | null", Doc: fmt.Sprintf("how many, default %d", ledger.DefaultTransactionsLimit)},
			{Name: "type_filter", Type: `"income" | "expense" | null`, Doc: "only one kind"},
		},
		Examples: []Example{
			{Message: "show my last 5 expenses", Arguments: `{"limit": 5, "type_filter": "expense"}`},
		},
		Decode: decodeTransactions,
	}
}

func (e *transactionsExecutor) Execute(ctx context.Context, args Args) (string, error) {
	a, ok := args.(TransactionsArgs)
	if !ok {
		return "", wrongArgs(OpGetTransactions, args)
	}
	txs, err := e.ledger.Transactions(ctx, a.UserID, a.Limit, a.TypeFilter)
	if err != nil {
		return "", err
	}
	return formatTransactions(txs, e.cfg.Location), nil
}

type dailySummaryExecutor struct{ ledgerExecutor }

func (e *dailySummaryExecutor) Descriptor() Descriptor {
	return Descriptor{
		Operation:   OpGetDailySummary,
		Description: "income, expenses and net for one day",
		Params: []Param{
			{Name: "date", Type: "string | null", Doc: "YYYY-MM-DD, null = today"},
		},
		Examples: []Example{
			{Message: "show me today's expenses", Arguments: `{}`},
		},
		Decode: decodeDailySummary,
	}
}

func (e *dailySummaryExecutor) Execute(ctx context.Context, args Args) (string, error) {
	a, ok := args.(DailySummaryArgs)
	if !ok {
		return "", wrongArgs(OpGetDailySummary, args)
	}
	s, err := e.ledger.DailySummary(ctx, a.UserID, a.Date)
	if err != nil {
		return "", err
	}
	return formatDaily(s, e.cfg.Currency), nil
}

type weeklySummaryExecutor struct{ ledgerExecutor }

func (e *weeklySummaryExecutor) Descriptor() Descriptor {
	return Descriptor{
		Operation:   OpGetWeeklySummary,
		Description: "income, expenses and net for the seven days from start_date",
		Params: []Param{
			{Name: "start_date", Type: "string | null", Doc: "YYYY-MM-DD, null = Monday of the current week"},
		},
		Examples: []Example{
			{Message: "what did I spend this week?", Arguments: `{}`},
		},
		Decode: decodeWeeklySummary,
	}
}

func (e *weeklySummaryExecutor) Execute(ctx context.Context, args Args) (string, error) {
	a, ok := args.(WeeklySummaryArgs)
	if !ok {
		return "", wrongArgs(OpGetWeeklySummary, args)
	}
	s, err := e.ledger.WeeklySummary(ctx, a.UserID, a.StartDate)
	if err != nil {
		return "", err
	}
	return formatWeekly(s, e.cfg.Currency), nil
}

type monthlySummaryExecutor struct{ ledgerExecutor }

func (e *monthlySummaryExecutor) Descriptor() Descriptor {
	return Descriptor{
		Operation:   OpGetMonthlySummary,
		Description: "income, expenses and net for a calendar month",
		Params: []Param{
			{Name: "year", Type: "number | null", Doc: "null = current year"},
			{Name: "month", Type: "number | null", Doc: "1-12, null = current month"},
		},
		Examples: []Example{
			{Message: "monthly summary", Arguments: `{}`},
			{Message: "how did I do in March 2025?", Arguments: `{"year": 2025, "month": 3}`},
		},
		Decode: decodeMonthlySummary,
	}
}

func (e *monthlySummaryExecutor) Execute(ctx context.Context, args Args) (string, error) {
	a, ok := args.(MonthlySummaryArgs)
	if !ok {
		return "", wrongArgs(OpGetMonthlySummary, args)
	}
	s, err := e.ledger.MonthlySummary(ctx, a.UserID, a.Year, a.Month)
	if err != nil {
		return "", err
	}
	return formatMonthly(s, e.cfg.Currency), nil
}

type categoryBreakdownExecutor struct{ ledgerExecutor }

func (e *categoryBreakdownExecutor) Descriptor() Descriptor {
	return Descriptor{
		Operation:   OpGetCategoryBreakdown,
		Description: "totals per category over a date range",
		Params: []Param{
			{Name: "start_date", Type: "string | null", Doc: fmt.Sprintf("YYYY-MM-DD, null = %d days before end_date", ledger.DefaultBreakdownDays)},
			{Name: "end_date", Type: "string | null", Doc: "YYYY-MM-DD, null = today"},
			{Name: "category", Type: "string | null", Doc: "only this category"},
		},
		Examples: []Example{
			{Message: "how much on groceries?", Arguments: `{"category": "groceries"}`},
		},
		Decode: decodeCategoryBreakdown,
	}
}

func (e *categoryBreakdownExecutor) Execute(ctx context.Context, args Args) (string, error) {
	a, ok := args.(CategoryBreakdownArgs)
	if !ok {
		return "", wrongArgs(OpGetCategoryBreakdown, args)
	}
	rows, err := e.ledger.CategoryBreakdown(ctx, a.UserID, a.StartDate, a.EndDate, a.Category)
	if err != nil {
		return "", err
	}
	return formatBreakdown(rows), nil
}

type spendingTrendsExecutor struct{ ledgerExecutor }

func (e *spendingTrendsExecutor) Descriptor() Descriptor {
	return Descriptor{
		Operation:   OpGetSpendingTrends,
		Description: "daily income and expenses over the last N days",
		Params: []Param{
			{Name: "days", Type: "number | null", Doc: fmt.Sprintf("1-%d, default %d", ledger.MaxTrendDays, ledger.DefaultTrendDays)},
		},
		Examples: []Example{
			{Message: "spending trends last 7 days", Arguments: `{"days": 7}`},
		},
		Decode: decodeSpendingTrends,
	}
}

func (e *spendingTrendsExecutor) Execute(ctx context.Context, args Args) (string, error) {
	a, ok := args.(SpendingTrendsArgs)
	if !ok {
		return "", wrongArgs(OpGetSpendingTrends, args)
	}
	points, err := e.ledger.SpendingTrends(ctx, a.UserID, a.Days)
	if err != nil {
		return "", err
	}
	return formatTrends(points, a.Days, e.cfg.Currency), nil
}

type transactionStatsExecutor struct{ ledgerExecutor }

func (e *transactionStatsExecutor) Descriptor() Descriptor {
	return Descriptor{
		Operation:   OpGetTransactionStats,
		Description: "counts, averages and largest amounts over all history (no arguments)",
		Examples: []Example{
			{Message: "give me my stats", Arguments: `{}`},
		},
		Decode: decodeTransactionStats,
	}
}

func (e *transactionStatsExecutor) Execute(ctx context.Context, args Args) (string, error) {
	a, ok := args.(TransactionStatsArgs)
	if !ok {
		return "", wrongArgs(OpGetTransactionStats, args)
	}
	st, err := e.ledger.TransactionStats(ctx, a.UserID)
	if err != nil {
		return "", err
	}
	return formatStats(st, e.cfg.Currency), nil
}
