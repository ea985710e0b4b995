// Package ledger stores expense and income transactions per user and
// computes the period rollups the chat operations report.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/expense-bot/internal/domain"
)

// ErrInvalidTransaction is returned when a write violates ledger constraints.
var ErrInvalidTransaction = errors.New("ledger: invalid transaction")

const (
	DefaultTransactionsLimit = 20
	MaxTransactionsLimit     = 100
	DefaultTrendDays         = 30
	MaxTrendDays             = 365
	DefaultBreakdownDays     = 30
)

// Amounts must fit a decimal(20,4) column.
const (
	MaxAmountScale         = 4
	MaxAmountIntegerDigits = 16
)

// Exponents beyond these bounds are rejected before any rescaling, which
// would otherwise allocate a coefficient with that many digits.
const (
	minAmountExponent = -32
	maxAmountExponent = MaxAmountIntegerDigits
)

var amountLimit = decimal.New(1, MaxAmountIntegerDigits)

// CheckAmountPrecision reports whether d is storable: at most
// MaxAmountIntegerDigits integer digits and MaxAmountScale decimal places.
// The sign is not checked.
func CheckAmountPrecision(d decimal.Decimal) error {
	if d.Sign() == 0 {
		return nil
	}
	exp := d.Exponent()
	if exp > maxAmountExponent || (exp >= minAmountExponent && d.Abs().GreaterThanOrEqual(amountLimit)) {
		return fmt.Errorf("amount must have at most %d integer digits", MaxAmountIntegerDigits)
	}
	if exp < minAmountExponent || !d.Equal(d.Truncate(MaxAmountScale)) {
		return fmt.Errorf("amount must have at most %d decimal places", MaxAmountScale)
	}
	return nil
}

// Ledger is the read/write surface consumed by the chat operations and the HTTP API.
type Ledger interface {
	CreateTransaction(ctx context.Context, in domain.NewTransaction) (domain.Transaction, error)
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
	Transactions(ctx context.Context, userID string, limit int, kind *domain.Kind) ([]domain.Transaction, error)
	DailySummary(ctx context.Context, userID string, date *civil.Date) (domain.DailySummary, error)
	WeeklySummary(ctx context.Context, userID string, start *civil.Date) (domain.WeeklySummary, error)
	MonthlySummary(ctx context.Context, userID string, year, month *int) (domain.MonthlySummary, error)
	CategoryBreakdown(ctx context.Context, userID string, start, end *civil.Date, category *string) ([]domain.CategoryTotal, error)
	SpendingTrends(ctx context.Context, userID string, days int) ([]domain.TrendPoint, error)
	TransactionStats(ctx context.Context, userID string) (domain.TransactionStats, error)
}

// Query selects a user's transactions. From is inclusive, To exclusive;
// zero values leave that side unbounded. Results are newest first.
type Query struct {
	UserID string
	From   time.Time
	To     time.Time
	Kind   *domain.Kind
	Limit  int
}

// Matches reports whether tx satisfies q, ignoring Limit.
func (q Query) Matches(tx domain.Transaction) bool {
	if tx.UserID != q.UserID {
		return false
	}
	if !q.From.IsZero() && tx.CreatedAt.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && !tx.CreatedAt.Before(q.To) {
		return false
	}
	if q.Kind != nil && tx.Kind != *q.Kind {
		return false
	}
	return true
}

// Repository is the storage backend behind Service.
type Repository interface {
	// Insert persists tx and assigns tx.ID.
	Insert(ctx context.Context, tx *domain.Transaction) error
	List(ctx context.Context, q Query) ([]domain.Transaction, error)
	Close() error
}
