// Package api assembles the HTTP routes and middleware of the expense bot.
package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-bot/internal/api/handlers"
	"github.com/dvloznov/expense-bot/internal/api/middleware"
	"github.com/dvloznov/expense-bot/internal/metrics"
)

// Routes groups the handlers served by NewRouter. Nil handlers leave their
// routes unregistered.
type Routes struct {
	Chat         *handlers.ChatHandler
	Transactions *handlers.TransactionsHandler
	Reports      *handlers.ReportsHandler
	Webhooks     *handlers.WebhooksHandler
	Jobs         *handlers.JobsHandler
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
}

// NewRouter registers every route and wraps the mux in the middleware chain.
// Routes under /api/ require a bearer token when auth is non-nil.
func NewRouter(routes Routes, auth *middleware.Authenticator, collector metrics.Collector, log zerolog.Logger) http.Handler {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	protect := middleware.Auth(auth)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handlers.Health)
	if routes.Metrics != nil {
		mux.Handle("GET /metrics", routes.Metrics)
	}

	if h := routes.Chat; h != nil {
		mux.Handle("POST /api/chat", protect(http.HandlerFunc(h.Chat)))
	}

	if h := routes.Transactions; h != nil {
		mux.Handle("GET /api/transactions", protect(http.HandlerFunc(h.ListTransactions)))
		mux.Handle("POST /api/transactions", protect(http.HandlerFunc(h.CreateTransaction)))
		mux.Handle("GET /api/balance", protect(http.HandlerFunc(h.Balance)))
	}

	if h := routes.Reports; h != nil {
		mux.Handle("GET /api/summary/{period}", protect(http.HandlerFunc(h.Summary)))
		mux.Handle("GET /api/breakdown", protect(http.HandlerFunc(h.Breakdown)))
		mux.Handle("GET /api/trends", protect(http.HandlerFunc(h.Trends)))
		mux.Handle("GET /api/stats", protect(http.HandlerFunc(h.Stats)))
	}

	if h := routes.Jobs; h != nil {
		mux.Handle("GET /api/jobs", protect(http.HandlerFunc(h.ListJobs)))
		mux.Handle("GET /api/jobs/{id}", protect(http.HandlerFunc(h.GetJob)))
	}

	// Webhooks authenticate with transport-specific tokens, not bearer tokens.
	if h := routes.Webhooks; h != nil {
		mux.HandleFunc("GET /webhook/whatsapp", h.VerifyWhatsApp)
		mux.HandleFunc("POST /webhook/whatsapp", h.WhatsApp)
		mux.HandleFunc("POST /webhook/telegram", h.Telegram)
	}

	return middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.Metrics(collector)(mux),
				),
			),
		),
	)
}
