package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/expense-bot/internal/api/middleware"
	"github.com/dvloznov/expense-bot/internal/domain"
	"github.com/dvloznov/expense-bot/internal/ledger"
)

// transactionView is the JSON shape of a ledger row.
type transactionView struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Type        domain.Kind     `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Category    *string         `json:"category"`
	Description *string         `json:"description"`
	RawMessage  *string         `json:"raw_message"`
	CreatedAt   time.Time       `json:"created_at"`
}

func viewOf(tx domain.Transaction) transactionView {
	return transactionView{
		ID:          tx.ID,
		UserID:      tx.UserID,
		Type:        tx.Kind,
		Amount:      tx.Amount,
		Currency:    tx.Currency,
		Category:    tx.Category,
		Description: tx.Description,
		RawMessage:  tx.RawMessage,
		CreatedAt:   tx.CreatedAt,
	}
}

type totalsView struct {
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
}

func totalsOf(t domain.Totals) totalsView {
	return totalsView{Income: t.Income, Expenses: t.Expenses, Net: t.Net}
}

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	ledger          ledger.Ledger
	defaultCurrency string
	log             zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(l ledger.Ledger, defaultCurrency string, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{ledger: l, defaultCurrency: defaultCurrency, log: log}
}

type createTransactionRequest struct {
	UserID      string          `json:"user_id"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Category    *string         `json:"category"`
	Description *string         `json:"description"`
	RawMessage  *string         `json:"raw_message"`
}

// CreateTransaction handles POST /api/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	userID, ok := resolveUser(r, req.UserID)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	kind, err := domain.ParseKind(req.Type)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "type must be income or expense")
		return
	}
	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		currency = h.defaultCurrency
	}

	tx, err := h.ledger.CreateTransaction(r.Context(), domain.NewTransaction{
		UserID:      userID,
		Kind:        kind,
		Amount:      req.Amount,
		Currency:    currency,
		Category:    req.Category,
		Description: req.Description,
		RawMessage:  req.RawMessage,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidTransaction) {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to create transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, viewOf(tx))
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUser(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	n := ledger.DefaultTransactionsLimit
	if limit != nil {
		if *limit < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "limit must be at least 1")
			return
		}
		n = *limit
	}

	var kind *domain.Kind
	if raw := queryString(r, "type"); raw != nil {
		k, err := domain.ParseKind(*raw)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "type must be income or expense")
			return
		}
		kind = &k
	}

	txs, err := h.ledger.Transactions(r.Context(), userID, n, kind)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to query transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
		return
	}

	views := make([]transactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, viewOf(tx))
	}
	middleware.WriteJSON(w, http.StatusOK, views)
}

// Balance handles GET /api/balance
func (h *TransactionsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUser(w, r)
	if !ok {
		return
	}

	bal, err := h.ledger.Balance(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to compute balance")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute balance")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":  userID,
		"balance":  bal,
		"currency": h.defaultCurrency,
	})
}

// ReportsHandler serves the read-only rollups.
type ReportsHandler struct {
	ledger ledger.Ledger
	log    zerolog.Logger
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(l ledger.Ledger, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{ledger: l, log: log}
}

// Summary handles GET /api/summary/{period}
func (h *ReportsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUser(w, r)
	if !ok {
		return
	}

	switch period := r.PathValue("period"); period {
	case "daily":
		date, err := queryDate(r, "date")
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		s, err := h.ledger.DailySummary(r.Context(), userID, date)
		if err != nil {
			h.fail(w, err, "Failed to compute daily summary")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, struct {
			Date civil.Date `json:"date"`
			totalsView
		}{s.Date, totalsOf(s.Totals)})

	case "weekly":
		start, err := queryDate(r, "start_date")
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		s, err := h.ledger.WeeklySummary(r.Context(), userID, start)
		if err != nil {
			h.fail(w, err, "Failed to compute weekly summary")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, struct {
			StartDate civil.Date `json:"start_date"`
			EndDate   civil.Date `json:"end_date"`
			totalsView
		}{s.StartDate, s.EndDate, totalsOf(s.Totals)})

	case "monthly":
		year, err := queryInt(r, "year")
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		month, err := queryInt(r, "month")
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if month != nil && (*month < 1 || *month > 12) {
			middleware.WriteError(w, http.StatusBadRequest, "month must be between 1 and 12")
			return
		}
		if year != nil && (*year < 1 || *year > 9999) {
			middleware.WriteError(w, http.StatusBadRequest, "year must be between 1 and 9999")
			return
		}
		s, err := h.ledger.MonthlySummary(r.Context(), userID, year, month)
		if err != nil {
			h.fail(w, err, "Failed to compute monthly summary")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, struct {
			Year  int `json:"year"`
			Month int `json:"month"`
			totalsView
		}{s.Year, int(s.Month), totalsOf(s.Totals)})

	default:
		middleware.WriteError(w, http.StatusNotFound, "Unknown summary period "+period)
	}
}

type categoryView struct {
	Category string          `json:"category"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
	Count    int             `json:"count"`
}

// Breakdown handles GET /api/breakdown
func (h *ReportsHandler) Breakdown(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUser(w, r)
	if !ok {
		return
	}
	start, err := queryDate(r, "start_date")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := queryDate(r, "end_date")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if start != nil && end != nil && end.Before(*start) {
		middleware.WriteError(w, http.StatusBadRequest, "end_date is before start_date")
		return
	}

	rows, err := h.ledger.CategoryBreakdown(r.Context(), userID, start, end, queryString(r, "category"))
	if err != nil {
		h.fail(w, err, "Failed to compute category breakdown")
		return
	}

	views := make([]categoryView, 0, len(rows))
	for _, ct := range rows {
		views = append(views, categoryView{
			Category: ct.Category,
			Income:   ct.Income,
			Expenses: ct.Expenses,
			Net:      ct.Net(),
			Count:    ct.Count,
		})
	}
	middleware.WriteJSON(w, http.StatusOK, views)
}

type trendView struct {
	Date     civil.Date      `json:"date"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
}

// Trends handles GET /api/trends
func (h *ReportsHandler) Trends(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUser(w, r)
	if !ok {
		return
	}
	days, err := queryInt(r, "days")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	n := ledger.DefaultTrendDays
	if days != nil {
		n = *days
	}
	if n < 1 || n > ledger.MaxTrendDays {
		middleware.WriteError(w, http.StatusBadRequest, "days must be between 1 and 365")
		return
	}

	points, err := h.ledger.SpendingTrends(r.Context(), userID, n)
	if err != nil {
		h.fail(w, err, "Failed to compute spending trends")
		return
	}

	views := make([]trendView, 0, len(points))
	for _, p := range points {
		views = append(views, trendView{Date: p.Date, Income: p.Income, Expenses: p.Expenses})
	}
	middleware.WriteJSON(w, http.StatusOK, views)
}

// Stats handles GET /api/stats
func (h *ReportsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUser(w, r)
	if !ok {
		return
	}

	st, err := h.ledger.TransactionStats(r.Context(), userID)
	if err != nil {
		h.fail(w, err, "Failed to compute transaction stats")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"total_transactions": st.TotalTransactions,
		"income_count":       st.IncomeCount,
		"expense_count":      st.ExpenseCount,
		"average_income":     st.AverageIncome,
		"average_expense":    st.AverageExpense,
		"largest_income":     st.LargestIncome,
		"largest_expense":    st.LargestExpense,
	})
}

func (h *ReportsHandler) fail(w http.ResponseWriter, err error, message string) {
	h.log.Error().Err(err).Msg(message)
	middleware.WriteError(w, http.StatusInternalServerError, message)
}
