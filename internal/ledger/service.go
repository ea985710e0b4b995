package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/expense-bot/internal/domain"
)

// Service implements Ledger over a Repository. All aggregation happens here so
// every backend reports identical numbers.
type Service struct {
	repo Repository
	loc  *time.Location
	now  func() time.Time

	mu          sync.Mutex
	lastCreated time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the timezone used for day, week and month boundaries.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewService creates a ledger service. Boundaries default to UTC.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, loc: time.UTC, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Ledger = (*Service)(nil)

// Close releases the underlying repository.
func (s *Service) Close() error {
	return s.repo.Close()
}

// CreateTransaction validates in and stores it with a server-assigned timestamp.
func (s *Service) CreateTransaction(ctx context.Context, in domain.NewTransaction) (domain.Transaction, error) {
	if err := validateNew(in); err != nil {
		return domain.Transaction{}, err
	}

	tx := domain.Transaction{
		UserID:      in.UserID,
		Kind:        in.Kind,
		Amount:      in.Amount,
		Currency:    strings.ToUpper(in.Currency),
		Category:    in.Category,
		Description: in.Description,
		RawMessage:  in.RawMessage,
		CreatedAt:   s.nextTimestamp(),
	}
	if err := s.repo.Insert(ctx, &tx); err != nil {
		return domain.Transaction{}, fmt.Errorf("CreateTransaction: insert: %w", err)
	}
	return tx, nil
}

func validateNew(in domain.NewTransaction) error {
	switch {
	case in.UserID == "":
		return fmt.Errorf("%w: user id is required", ErrInvalidTransaction)
	case in.Kind != domain.KindIncome && in.Kind != domain.KindExpense:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTransaction, in.Kind)
	case !in.Amount.IsPositive():
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidTransaction)
	case len(in.Currency) != 3:
		return fmt.Errorf("%w: currency %q is not a 3-letter code", ErrInvalidTransaction, in.Currency)
	}
	if err := CheckAmountPrecision(in.Amount); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	return nil
}

// nextTimestamp returns a creation time strictly after the previous one, at
// microsecond resolution so SQL and BigQuery backends keep the ordering.
func (s *Service) nextTimestamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UTC().Truncate(time.Microsecond)
	if !ts.After(s.lastCreated) {
		ts = s.lastCreated.Add(time.Microsecond)
	}
	s.lastCreated = ts
	return ts
}

// Balance is total income minus total expenses; zero for unknown users.
func (s *Service) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	txs, err := s.repo.List(ctx, Query{UserID: userID})
	if err != nil {
		return decimal.Zero, fmt.Errorf("Balance: %w", err)
	}
	return totalize(txs).Net, nil
}

// Transactions returns the newest transactions, optionally of one kind.
func (s *Service) Transactions(ctx context.Context, userID string, limit int, kind *domain.Kind) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = DefaultTransactionsLimit
	}
	if limit > MaxTransactionsLimit {
		limit = MaxTransactionsLimit
	}
	txs, err := s.repo.List(ctx, Query{UserID: userID, Kind: kind, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("Transactions: %w", err)
	}
	return txs, nil
}

// DailySummary totals one day, today when date is nil.
func (s *Service) DailySummary(ctx context.Context, userID string, date *civil.Date) (domain.DailySummary, error) {
	day := s.today()
	if date != nil {
		day = *date
	}
	txs, err := s.repo.List(ctx, Query{UserID: userID, From: s.startOf(day), To: s.startOf(day.AddDays(1))})
	if err != nil {
		return domain.DailySummary{}, fmt.Errorf("DailySummary: %w", err)
	}
	return domain.DailySummary{Date: day, Totals: totalize(txs)}, nil
}

// WeeklySummary totals seven days from start, this week's Monday when nil.
func (s *Service) WeeklySummary(ctx context.Context, userID string, start *civil.Date) (domain.WeeklySummary, error) {
	from := mondayOf(s.today(), s.loc)
	if start != nil {
		from = *start
	}
	to := from.AddDays(6)
	txs, err := s.repo.List(ctx, Query{UserID: userID, From: s.startOf(from), To: s.startOf(to.AddDays(1))})
	if err != nil {
		return domain.WeeklySummary{}, fmt.Errorf("WeeklySummary: %w", err)
	}
	return domain.WeeklySummary{StartDate: from, EndDate: to, Totals: totalize(txs)}, nil
}

// MonthlySummary totals a calendar month; nil year or month mean current.
func (s *Service) MonthlySummary(ctx context.Context, userID string, year, month *int) (domain.MonthlySummary, error) {
	today := s.today()
	y, m := today.Year, today.Month
	if year != nil {
		y = *year
	}
	if month != nil {
		if *month < 1 || *month > 12 {
			return domain.MonthlySummary{}, fmt.Errorf("MonthlySummary: month %d out of range 1-12", *month)
		}
		m = time.Month(*month)
	}

	first := civil.Date{Year: y, Month: m, Day: 1}
	next := civil.DateOf(first.In(s.loc).AddDate(0, 1, 0))
	txs, err := s.repo.List(ctx, Query{UserID: userID, From: s.startOf(first), To: s.startOf(next)})
	if err != nil {
		return domain.MonthlySummary{}, fmt.Errorf("MonthlySummary: %w", err)
	}
	return domain.MonthlySummary{Year: y, Month: m, Totals: totalize(txs)}, nil
}

// CategoryBreakdown groups [start, end] by category. end defaults to today and
// start to thirty days before end. A non-nil category keeps only that label.
func (s *Service) CategoryBreakdown(ctx context.Context, userID string, start, end *civil.Date, category *string) ([]domain.CategoryTotal, error) {
	to := s.today()
	if end != nil {
		to = *end
	}
	from := to.AddDays(-DefaultBreakdownDays)
	if start != nil {
		from = *start
	}
	if to.Before(from) {
		return nil, fmt.Errorf("CategoryBreakdown: end date %s is before start date %s", to, from)
	}

	txs, err := s.repo.List(ctx, Query{UserID: userID, From: s.startOf(from), To: s.startOf(to.AddDays(1))})
	if err != nil {
		return nil, fmt.Errorf("CategoryBreakdown: %w", err)
	}
	totals := breakdown(txs)
	if category == nil || strings.TrimSpace(*category) == "" {
		return totals, nil
	}

	filtered := totals[:0]
	for _, ct := range totals {
		if strings.EqualFold(ct.Category, strings.TrimSpace(*category)) {
			filtered = append(filtered, ct)
		}
	}
	return filtered, nil
}

// SpendingTrends returns one point per active day over the last days days, oldest first.
func (s *Service) SpendingTrends(ctx context.Context, userID string, days int) ([]domain.TrendPoint, error) {
	if days < 1 || days > MaxTrendDays {
		return nil, fmt.Errorf("SpendingTrends: days %d out of range 1-%d", days, MaxTrendDays)
	}
	today := s.today()
	from := today.AddDays(-(days - 1))
	txs, err := s.repo.List(ctx, Query{UserID: userID, From: s.startOf(from), To: s.startOf(today.AddDays(1))})
	if err != nil {
		return nil, fmt.Errorf("SpendingTrends: %w", err)
	}
	return trends(txs, s.loc), nil
}

// TransactionStats summarises the user's whole history.
func (s *Service) TransactionStats(ctx context.Context, userID string) (domain.TransactionStats, error) {
	txs, err := s.repo.List(ctx, Query{UserID: userID})
	if err != nil {
		return domain.TransactionStats{}, fmt.Errorf("TransactionStats: %w", err)
	}
	return stats(txs), nil
}
