package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/expense-bot/internal/domain"
	"github.com/dvloznov/expense-bot/internal/ledger"
)

// fakeModel returns a canned answer and records requests.
type fakeModel struct {
	mu    sync.Mutex
	reply string
	err   error
	calls []ModelRequest
}

func (f *fakeModel) Generate(ctx context.Context, req ModelRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return f.reply, f.err
}

func (f *fakeModel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// spyLedger counts calls and can fail every call.
type spyLedger struct {
	inner ledger.Ledger
	err   error
	calls int
	users []string
}

func (s *spyLedger) record(userID string) error {
	s.calls++
	s.users = append(s.users, userID)
	return s.err
}

func (s *spyLedger) CreateTransaction(ctx context.Context, in domain.NewTransaction) (domain.Transaction, error) {
	if err := s.record(in.UserID); err != nil {
		return domain.Transaction{}, err
	}
	return s.inner.CreateTransaction(ctx, in)
}

func (s *spyLedger) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	if err := s.record(userID); err != nil {
		return decimal.Zero, err
	}
	return s.inner.Balance(ctx, userID)
}

func (s *spyLedger) Transactions(ctx context.Context, userID string, limit int, kind *domain.Kind) ([]domain.Transaction, error) {
	if err := s.record(userID); err != nil {
		return nil, err
	}
	return s.inner.Transactions(ctx, userID, limit, kind)
}

func (s *spyLedger) DailySummary(ctx context.Context, userID string, date *civil.Date) (domain.DailySummary, error) {
	if err := s.record(userID); err != nil {
		return domain.DailySummary{}, err
	}
	return s.inner.DailySummary(ctx, userID, date)
}

func (s *spyLedger) WeeklySummary(ctx context.Context, userID string, start *civil.Date) (domain.WeeklySummary, error) {
	if err := s.record(userID); err != nil {
		return domain.WeeklySummary{}, err
	}
	return s.inner.WeeklySummary(ctx, userID, start)
}

func (s *spyLedger) MonthlySummary(ctx context.Context, userID string, year, month *int) (domain.MonthlySummary, error) {
	if err := s.record(userID); err != nil {
		return domain.MonthlySummary{}, err
	}
	return s.inner.MonthlySummary(ctx, userID, year, month)
}

func (s *spyLedger) CategoryBreakdown(ctx context.Context, userID string, start, end *civil.Date, category *string) ([]domain.CategoryTotal, error) {
	if err := s.record(userID); err != nil {
		return nil, err
	}
	return s.inner.CategoryBreakdown(ctx, userID, start, end, category)
}

func (s *spyLedger) SpendingTrends(ctx context.Context, userID string, days int) ([]domain.TrendPoint, error) {
	if err := s.record(userID); err != nil {
		return nil, err
	}
	return s.inner.SpendingTrends(ctx, userID, days)
}

func (s *spyLedger) TransactionStats(ctx context.Context, userID string) (domain.TransactionStats, error) {
	if err := s.record(userID); err != nil {
		return domain.TransactionStats{}, err
	}
	return s.inner.TransactionStats(ctx, userID)
}

var errLedgerDown = errors.New("connection refused")

type harness struct {
	model      *fakeModel
	spy        *spyLedger
	repo       *ledger.MemoryRepository
	registry   *Registry
	resolver   *Resolver
	dispatcher *Dispatcher
	assistant  *Assistant
}

func newHarness(t *testing.T, opts ...DispatcherOption) *harness {
	t.Helper()
	repo := ledger.NewMemoryRepository()
	svc := ledger.NewService(repo, ledger.WithClock(func() time.Time {
		return time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)
	}))
	spy := &spyLedger{inner: svc}

	registry, err := NewLedgerRegistry(spy, LedgerConfig{Currency: "CAD"})
	require.NoError(t, err)

	model := &fakeModel{}
	resolver := NewResolver(model, registry, ResolverConfig{ShortModel: "short", LongModel: "long"}, zerolog.Nop(), nil)
	dispatcher := NewDispatcher(registry, zerolog.Nop(), opts...)
	return &harness{
		model:      model,
		spy:        spy,
		repo:       repo,
		registry:   registry,
		resolver:   resolver,
		dispatcher: dispatcher,
		assistant:  New(resolver, dispatcher),
	}
}

// intent builds a resolved intent the way decodeIntent would for sender.
func intent(op Operation, sender string, args map[string]interface{}) ResolvedIntent {
	if args == nil {
		args = map[string]interface{}{}
	}
	args["user_id"] = sender
	return ResolvedIntent{Operation: op, Arguments: args}
}
