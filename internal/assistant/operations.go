// Package assistant turns a chat message into one ledger operation and the
// reply text for it. The operation set is closed: a model can only ever name
// one of the operations registered at startup.
package assistant

import "errors"

// Operation names one callable unit of work.
type Operation string

const (
	OpCreateExpense        Operation = "create_expense"
	OpCreateIncome         Operation = "create_income"
	OpGetBalance           Operation = "get_balance"
	OpGetTransactions      Operation = "get_transactions"
	OpGetDailySummary      Operation = "get_daily_summary"
	OpGetWeeklySummary     Operation = "get_weekly_summary"
	OpGetMonthlySummary    Operation = "get_monthly_summary"
	OpGetCategoryBreakdown Operation = "get_category_breakdown"
	OpGetSpendingTrends    Operation = "get_spending_trends"
	OpGetTransactionStats  Operation = "get_transaction_stats"

	// Unresolved is what the model answers when no operation fits.
	Unresolved Operation = "unknown"
)

// ErrUnknownOperation is returned when a name is outside the closed set.
var ErrUnknownOperation = errors.New("assistant: unknown operation")

// Operations lists the closed set in prompt order.
func Operations() []Operation {
	return []Operation{
		OpCreateExpense,
		OpCreateIncome,
		OpGetBalance,
		OpGetTransactions,
		OpGetDailySummary,
		OpGetWeeklySummary,
		OpGetMonthlySummary,
		OpGetCategoryBreakdown,
		OpGetSpendingTrends,
		OpGetTransactionStats,
	}
}

// IsKnown reports whether op is in the closed set. Matching is exact.
func IsKnown(op Operation) bool {
	for _, known := range Operations() {
		if op == known {
			return true
		}
	}
	return false
}

// ResolvedIntent is the decoded model answer for one inbound message.
type ResolvedIntent struct {
	Operation Operation
	Arguments map[string]interface{}
	// Error explains an unresolved intent; empty otherwise.
	Error string
	// Message is the (truncated) text the intent was resolved from.
	Message string
	// IdempotencyKey is the transport message id, when the gateway has one.
	IdempotencyKey string
}

// IsUnresolved reports whether no operation was chosen.
func (i ResolvedIntent) IsUnresolved() bool {
	return i.Operation == Unresolved
}

func unresolved(userID, reason string) ResolvedIntent {
	return ResolvedIntent{
		Operation: Unresolved,
		Arguments: map[string]interface{}{"user_id": userID},
		Error:     reason,
	}
}
