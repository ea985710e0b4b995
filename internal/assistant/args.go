package assistant

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/expense-bot/internal/domain"
	"github.com/dvloznov/expense-bot/internal/ledger"
)

// Args is the typed argument record of one operation.
type Args interface {
	Operation() Operation
	User() string
}

// ArgsInput is what a descriptor decodes from.
type ArgsInput struct {
	Raw             map[string]interface{}
	Message         string
	DefaultCurrency string
}

// TransactionArgs is shared by both write operations.
type TransactionArgs struct {
	UserID      string
	Amount      decimal.Decimal
	Currency    string
	Category    *string
	Description *string
	RawMessage  *string
}

func (a TransactionArgs) User() string { return a.UserID }

type CreateExpenseArgs struct{ TransactionArgs }

func (CreateExpenseArgs) Operation() Operation { return OpCreateExpense }

type CreateIncomeArgs struct{ TransactionArgs }

func (CreateIncomeArgs) Operation() Operation { return OpCreateIncome }

type BalanceArgs struct{ UserID string }

func (BalanceArgs) Operation() Operation { return OpGetBalance }
func (a BalanceArgs) User() string { return a.UserID }

type TransactionsArgs struct {
	UserID     string
	Limit      int
	TypeFilter *domain.Kind
}

func (TransactionsArgs) Operation() Operation { return OpGetTransactions }
func (a TransactionsArgs) User() string { return a.UserID }

type DailySummaryArgs struct {
	UserID string
	Date   *civil.Date
}

func (DailySummaryArgs) Operation() Operation { return OpGetDailySummary }
func (a DailySummaryArgs) User() string { return a.UserID }

type WeeklySummaryArgs struct {
	UserID    string
	StartDate *civil.Date
}

func (WeeklySummaryArgs) Operation() Operation { return OpGetWeeklySummary }
func (a WeeklySummaryArgs) User() string { return a.UserID }

type MonthlySummaryArgs struct {
	UserID string
	Year   *int
	Month  *int
}

func (MonthlySummaryArgs) Operation() Operation { return OpGetMonthlySummary }
func (a MonthlySummaryArgs) User() string { return a.UserID }

type CategoryBreakdownArgs struct {
	UserID    string
	StartDate *civil.Date
	EndDate   *civil.Date
	Category  *string
}

func (CategoryBreakdownArgs) Operation() Operation { return OpGetCategoryBreakdown }
func (a CategoryBreakdownArgs) User() string { return a.UserID }

type SpendingTrendsArgs struct {
	UserID string
	Days   int
}

func (SpendingTrendsArgs) Operation() Operation { return OpGetSpendingTrends }
func (a SpendingTrendsArgs) User() string { return a.UserID }

type TransactionStatsArgs struct{ UserID string }

func (TransactionStatsArgs) Operation() Operation { return OpGetTransactionStats }
func (a TransactionStatsArgs) User() string { return a.UserID }

func decodeTransaction(in ArgsInput) (TransactionArgs, error) {
	userID, err := getStringField(in.Raw, "user_id", true)
	if err != nil {
		return TransactionArgs{}, err
	}
	amount, err := getDecimalField(in.Raw, "amount")
	if err != nil {
		return TransactionArgs{}, err
	}
	if err := ledger.CheckAmountPrecision(amount); err != nil {
		return TransactionArgs{}, err
	}
	if !amount.IsPositive() {
		return TransactionArgs{}, fmt.Errorf("amount must be greater than zero, got %s", amount)
	}
	currency, err := getCurrencyField(in.Raw, "currency", in.DefaultCurrency)
	if err != nil {
		return TransactionArgs{}, err
	}
	category, err := getOptionalStringField(in.Raw, "category")
	if err != nil {
		return TransactionArgs{}, err
	}
	description, err := getOptionalStringField(in.Raw, "description")
	if err != nil {
		return TransactionArgs{}, err
	}

	args := TransactionArgs{
		UserID:      userID,
		Amount:      amount,
		Currency:    currency,
		Category:    category,
		Description: description,
	}
	if msg := strings.TrimSpace(in.Message); msg != "" {
		args.RawMessage = &msg
	}
	return args, nil
}

func decodeCreateExpense(in ArgsInput) (Args, error) {
	base, err := decodeTransaction(in)
	if err != nil {
		return nil, err
	}
	return CreateExpenseArgs{base}, nil
}

func decodeCreateIncome(in ArgsInput) (Args, error) {
	base, err := decodeTransaction(in)
	if err != nil {
		return nil, err
	}
	return CreateIncomeArgs{base}, nil
}

func decodeBalance(in ArgsInput) (Args, error) {
	userID, err := getStringField(in.Raw, "user_id", true)
	if err != nil {
		return nil, err
	}
	return BalanceArgs{UserID: userID}, nil
}

func decodeTransactions(in ArgsInput) (Args, error) {
	userID, err := getStringField(in.Raw, "user_id", true)
	if err != nil {
		return nil, err
	}
	args := TransactionsArgs{UserID: userID, Limit: ledger.DefaultTransactionsLimit}

	limit, err := getOptionalIntField(in.Raw, "limit")
	if err != nil {
		return nil, err
	}
	if limit != nil {
		if *limit < 1 {
			return nil, fmt.Errorf("limit must be a positive integer, got %d", *limit)
		}
		args.Limit = min(*limit, ledger.MaxTransactionsLimit)
	}

	filter, err := getOptionalStringField(in.Raw, "type_filter")
	if err != nil {
		return nil, err
	}
	if filter != nil {
		kind, err := domain.ParseKind(*filter)
		if err != nil {
			return nil, err
		}
		args.TypeFilter = &kind
	}
	return args, nil
}

func decodeDailySummary(in ArgsInput) (Args, error) {
	userID, err := getStringField(in.Raw, "user_id", true)
	if err != nil {
		return nil, err
	}
	date, err := getOptionalDateField(in.Raw, "date")
	if err != nil {
		return nil, err
	}
	return DailySummaryArgs{UserID: userID, Date: date}, nil
}

func decodeWeeklySummary(in ArgsInput) (Args, error) {
	userID, err := getStringField(in.Raw, "user_id", true)
	if err != nil {
		return nil, err
	}
	start, err := getOptionalDateField(in.Raw, "start_date")
	if err != nil {
		return nil, err
	}
	return WeeklySummaryArgs{UserID: userID, StartDate: start}, nil
}

func decodeMonthlySummary(in ArgsInput) (Args, error) {
	userID, err := getStringField(in.Raw, "user_id", true)
	if err != nil {
		return nil, err
	}
	year, err := getOptionalIntField(in.Raw, "year")
	if err != nil {
		return nil, err
	}
	if year != nil && (*year < 1 || *year > 9999) {
		return nil, fmt.Errorf("year %d out of range", *year)
	}
	month, err := getOptionalIntField(in.Raw, "month")
	if err != nil {
		return nil, err
	}
	if month != nil && (*month < 1 || *month > 12) {
		return nil, fmt.Errorf("month must be between 1 and 12, got %d", *month)
	}
	return MonthlySummaryArgs{UserID: userID, Year: year, Month: month}, nil
}

func decodeCategoryBreakdown(in ArgsInput) (Args, error) {
	userID, err := getStringField(in.Raw, "user_id", true)
	if err != nil {
		return nil, err
	}
	start, err := getOptionalDateField(in.Raw, "start_date")
	if err != nil {
		return nil, err
	}
	end, err := getOptionalDateField(in.Raw, "end_date")
	if err != nil {
		return nil, err
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, fmt.Errorf("end_date %s is before start_date %s", end, start)
	}
	category, err := getOptionalStringField(in.Raw, "category")
	if err != nil {
		return nil, err
	}
	return CategoryBreakdownArgs{UserID: userID, StartDate: start, EndDate: end, Category: category}, nil
}

func decodeSpendingTrends(in ArgsInput) (Args, error) {
	userID, err := getStringField(in.Raw, "user_id", true)
	if err != nil {
		return nil, err
	}
	args := SpendingTrendsArgs{UserID: userID, Days: ledger.DefaultTrendDays}
	days, err := getOptionalIntField(in.Raw, "days")
	if err != nil {
		return nil, err
	}
	if days != nil {
		if *days < 1 || *days > ledger.MaxTrendDays {
			return nil, fmt.Errorf("days must be between 1 and %d, got %d", ledger.MaxTrendDays, *days)
		}
		args.Days = *days
	}
	return args, nil
}

func decodeTransactionStats(in ArgsInput) (Args, error) {
	userID, err := getStringField(in.Raw, "user_id", true)
	if err != nil {
		return nil, err
	}
	return TransactionStatsArgs{UserID: userID}, nil
}

// Field helpers. Values come from untrusted model JSON decoded with UseNumber,
// so numbers arrive as json.Number; float64 and int are accepted for callers
// that build argument maps by hand.

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	val, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q has type %s, want string", key, jsonType(v))
	}
	if required && strings.TrimSpace(val) == "" {
		return "", fmt.Errorf("required field %q is empty", key)
	}
	return val, nil
}

func getOptionalStringField(m map[string]interface{}, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	val, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("field %q has type %s, want string or null", key, jsonType(v))
	}
	s := strings.TrimSpace(val)
	if s == "" {
		return nil, nil
	}
	return &s, nil
}

func getDecimalField(m map[string]interface{}, key string) (decimal.Decimal, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return decimal.Zero, fmt.Errorf("missing required field %q", key)
	}
	return toDecimal(key, v)
}

func toDecimal(key string, v interface{}) (decimal.Decimal, error) {
	switch val := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %q: %w", key, err)
		}
		return d, nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return decimal.Zero, fmt.Errorf("field %q is not a finite number", key)
		}
		return decimal.NewFromFloat(val), nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int64:
		return decimal.NewFromInt(val), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %q value %q is not a number", key, val)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("field %q has type %s, want number", key, jsonType(v))
	}
}

func getOptionalIntField(m map[string]interface{}, key string) (*int, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	d, err := toDecimal(key, v)
	if err != nil {
		return nil, err
	}
	switch exp := d.Exponent(); {
	case exp > 10:
		return nil, fmt.Errorf("field %q is out of range", key)
	case exp < -32:
		return nil, fmt.Errorf("field %q must be a whole number", key)
	}
	if !d.Equal(d.Truncate(0)) {
		return nil, fmt.Errorf("field %q must be a whole number, got %s", key, d)
	}
	if d.Abs().GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
		return nil, fmt.Errorf("field %q value %s is out of range", key, d)
	}
	n := int(d.IntPart())
	return &n, nil
}

func getOptionalDateField(m map[string]interface{}, key string) (*civil.Date, error) {
	s, err := getOptionalStringField(m, key)
	if err != nil || s == nil {
		return nil, err
	}
	d, err := civil.ParseDate(*s)
	if err != nil {
		return nil, fmt.Errorf("field %q must be a YYYY-MM-DD date, got %q", key, *s)
	}
	return &d, nil
}

func getCurrencyField(m map[string]interface{}, key, fallback string) (string, error) {
	s, err := getOptionalStringField(m, key)
	if err != nil {
		return "", err
	}
	if s == nil {
		return fallback, nil
	}
	code := strings.ToUpper(*s)
	if len(code) != 3 {
		return "", fmt.Errorf("field %q must be a 3-letter currency code, got %q", key, *s)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("field %q must be a 3-letter currency code, got %q", key, *s)
		}
	}
	return code, nil
}

func jsonType(v interface{}) string {
	switch v.(type) {
	case string:
		return "string"
	case json.Number, float64, int, int64:
		return "number"
	case bool:
		return "boolean"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
