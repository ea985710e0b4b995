package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/expense-bot/internal/api/handlers"
	"github.com/dvloznov/expense-bot/internal/api/middleware"
	"github.com/dvloznov/expense-bot/internal/assistant"
	"github.com/dvloznov/expense-bot/internal/gateway"
	"github.com/dvloznov/expense-bot/internal/jobs"
	"github.com/dvloznov/expense-bot/internal/jobs/inmemory"
	"github.com/dvloznov/expense-bot/internal/ledger"
)

type echoAssistant struct {
	got []assistant.Message
}

func (e *echoAssistant) Reply(ctx context.Context, msg assistant.Message) string {
	e.got = append(e.got, msg)
	return "echo: " + msg.Text
}

type recordingPublisher struct {
	jobs []*jobs.ProcessMessagesJob
	err  error
}

func (p *recordingPublisher) PublishProcessMessages(ctx context.Context, job *jobs.ProcessMessagesJob) error {
	if p.err != nil {
		return p.err
	}
	job.JobID = "job-1"
	p.jobs = append(p.jobs, job)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type testServer struct {
	handler   http.Handler
	assistant *echoAssistant
	publisher *recordingPublisher
	store     *inmemory.Store
}

// 2025-03-12 is a Wednesday.
var testNow = time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, auth *middleware.Authenticator) *testServer {
	t.Helper()
	log := zerolog.Nop()
	svc := ledger.NewService(ledger.NewMemoryRepository(), ledger.WithClock(func() time.Time { return testNow }))
	ts := &testServer{
		assistant: &echoAssistant{},
		publisher: &recordingPublisher{},
		store:     inmemory.NewStore(10),
	}
	ts.handler = NewRouter(Routes{
		Chat:         handlers.NewChatHandler(ts.assistant, log),
		Transactions: handlers.NewTransactionsHandler(svc, "CAD", log),
		Reports:      handlers.NewReportsHandler(svc, log),
		Webhooks:     handlers.NewWebhooksHandler(ts.publisher, "verify-me", "tg-secret", log),
		Jobs:         handlers.NewJobsHandler(ts.store, log),
	}, auth, nil, log)
	return ts
}

func (ts *testServer) do(t *testing.T, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestChat(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/chat", `{"message":"I spent 12 on lunch","user_id":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"response":"echo: I spent 12 on lunch"}`, rec.Body.String())
	assert.Equal(t, "u1", ts.assistant.got[0].UserID)

	rec = ts.do(t, http.MethodPost, "/api/chat", `{"message":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/chat", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/chat", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestChat_TokenSubjectOverridesUserID(t *testing.T) {
	auth := middleware.NewAuthenticator("s3cret", "expense-bot")
	ts := newTestServer(t, auth)
	token, err := auth.Issue("real-user", time.Hour)
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPost, "/api/chat", `{"message":"balance","user_id":"someone-else"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/chat", `{"message":"balance","user_id":"someone-else"}`, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "real-user", ts.assistant.got[0].UserID)

	// Health and webhooks stay public.
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health", "").Code)
}

func TestTransactionsAndReports(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/transactions", `{"user_id":"u1","type":"income","amount":2000,"category":"salary"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created map[string]interface{}
	decode(t, rec, &created)
	assert.Equal(t, "CAD", created["currency"])
	assert.Equal(t, "income", created["type"])
	assert.NotEmpty(t, created["id"])

	rec = ts.do(t, http.MethodPost, "/api/transactions", `{"user_id":"u1","type":"expense","amount":"30.50","currency":"cad","category":"food"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/balance?user_id=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"u1","balance":"1969.5","currency":"CAD"}`, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/transactions?user_id=u1&type=expense", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]interface{}
	decode(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "30.5", list[0]["amount"])
	assert.Equal(t, "CAD", list[0]["currency"])

	rec = ts.do(t, http.MethodGet, "/api/summary/daily?user_id=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"date":"2025-03-12","income":"2000","expenses":"30.5","net":"1969.5"}`, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/summary/weekly?user_id=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var weekly map[string]interface{}
	decode(t, rec, &weekly)
	assert.Equal(t, "2025-03-10", weekly["start_date"])
	assert.Equal(t, "2025-03-16", weekly["end_date"])

	rec = ts.do(t, http.MethodGet, "/api/summary/monthly?user_id=u1&year=2025&month=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"year":2025,"month":2,"income":"0","expenses":"0","net":"0"}`, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/breakdown?user_id=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []map[string]interface{}
	decode(t, rec, &rows)
	require.Len(t, rows, 2)
	assert.Equal(t, "salary", rows[0]["category"])

	rec = ts.do(t, http.MethodGet, "/api/trends?user_id=u1&days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var points []map[string]interface{}
	decode(t, rec, &points)
	require.Len(t, points, 1)
	assert.Equal(t, "2025-03-12", points[0]["date"])

	rec = ts.do(t, http.MethodGet, "/api/stats?user_id=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st map[string]interface{}
	decode(t, rec, &st)
	assert.Equal(t, float64(2), st["total_transactions"])
	assert.Equal(t, "30.5", st["largest_expense"])
}

func TestLedgerRoutes_BadRequests(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"missing user", http.MethodGet, "/api/balance", "", http.StatusBadRequest},
		{"bad kind", http.MethodPost, "/api/transactions", `{"user_id":"u1","type":"gift","amount":5}`, http.StatusBadRequest},
		{"zero amount", http.MethodPost, "/api/transactions", `{"user_id":"u1","type":"expense","amount":0}`, http.StatusBadRequest},
		{"amount below storage scale", http.MethodPost, "/api/transactions", `{"user_id":"u1","type":"expense","amount":1e-8}`, http.StatusBadRequest},
		{"amount above storage range", http.MethodPost, "/api/transactions", `{"user_id":"u1","type":"income","amount":"1e20"}`, http.StatusBadRequest},
		{"bad currency", http.MethodPost, "/api/transactions", `{"user_id":"u1","type":"expense","amount":5,"currency":"DOLLARS"}`, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/api/transactions?user_id=u1&limit=abc", "", http.StatusBadRequest},
		{"zero limit", http.MethodGet, "/api/transactions?user_id=u1&limit=0", "", http.StatusBadRequest},
		{"bad type filter", http.MethodGet, "/api/transactions?user_id=u1&type=gift", "", http.StatusBadRequest},
		{"bad date", http.MethodGet, "/api/summary/daily?user_id=u1&date=12/03/2025", "", http.StatusBadRequest},
		{"bad month", http.MethodGet, "/api/summary/monthly?user_id=u1&month=13", "", http.StatusBadRequest},
		{"unknown period", http.MethodGet, "/api/summary/yearly?user_id=u1", "", http.StatusNotFound},
		{"inverted range", http.MethodGet, "/api/breakdown?user_id=u1&start_date=2025-03-10&end_date=2025-03-01", "", http.StatusBadRequest},
		{"days too large", http.MethodGet, "/api/trends?user_id=u1&days=366", "", http.StatusBadRequest},
		{"days zero", http.MethodGet, "/api/trends?user_id=u1&days=0", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			var body map[string]string
			decode(t, rec, &body)
			assert.NotEmpty(t, body["error"])
		})
	}
}

const whatsappPayload = `{
  "object": "whatsapp_business_account",
  "entry": [{"id": "1", "changes": [{"field": "messages", "value": {
    "messaging_product": "whatsapp",
    "messages": [{"from": "15551234567", "id": "wamid.1", "timestamp": "1741791600", "type": "text", "text": {"body": "I spent 30 on food"}}]
  }}]}]
}`

func TestWhatsAppWebhook(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=42", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=42", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/webhook/whatsapp", whatsappPayload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"processed","job_id":"job-1"}`, rec.Body.String())
	require.Len(t, ts.publisher.jobs, 1)
	job := ts.publisher.jobs[0]
	assert.Equal(t, gateway.ChannelWhatsApp, job.Channel)
	require.Len(t, job.Messages, 1)
	assert.Equal(t, "I spent 30 on food", job.Messages[0].Text)

	rec = ts.do(t, http.MethodPost, "/webhook/whatsapp", `{"entry":[{"changes":[{"value":{"statuses":[{}]}}]}]}`)
	assert.JSONEq(t, `{"status":"ignored"}`, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/webhook/whatsapp", `{{`)
	assert.JSONEq(t, `{"status":"ignored"}`, rec.Body.String())
	assert.Len(t, ts.publisher.jobs, 1)
}

func TestWhatsAppWebhook_QueueFull(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.publisher.err = errors.New("queue is closed")

	rec := ts.do(t, http.MethodPost, "/webhook/whatsapp", whatsappPayload)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTelegramWebhook(t *testing.T) {
	ts := newTestServer(t, nil)
	update := `{"update_id": 9, "message": {"message_id": 5, "date": 1741791600,
		"chat": {"id": 100, "type": "private"}, "from": {"id": 7, "is_bot": false, "first_name": "A"},
		"text": "balance"}}`

	rec := ts.do(t, http.MethodPost, "/webhook/telegram", update)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/webhook/telegram", update, "X-Telegram-Bot-Api-Secret-Token", "tg-secret")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, ts.publisher.jobs, 1)
	msg := ts.publisher.jobs[0].Messages[0]
	assert.Equal(t, gateway.ChannelTelegram, msg.Channel)
	assert.Equal(t, "100", msg.ChatID)
	assert.Equal(t, "balance", msg.Text)

	command := `{"update_id": 10, "message": {"message_id": 6, "chat": {"id": 100}, "from": {"id": 7}, "text": "/start"}}`
	rec = ts.do(t, http.MethodPost, "/webhook/telegram", command, "X-Telegram-Bot-Api-Secret-Token", "tg-secret")
	assert.JSONEq(t, `{"status":"ignored"}`, rec.Body.String())
}

func TestJobsRoutes(t *testing.T) {
	ts := newTestServer(t, nil)
	require.NoError(t, ts.store.SaveJob(context.Background(), &jobs.ProcessMessagesJob{
		JobID:     "abc",
		Channel:   gateway.ChannelTelegram,
		Status:    jobs.JobStatusCompleted,
		CreatedAt: testNow,
	}))

	rec := ts.do(t, http.MethodGet, "/api/jobs/abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var job map[string]interface{}
	decode(t, rec, &job)
	assert.Equal(t, "completed", job["status"])

	rec = ts.do(t, http.MethodGet, "/api/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/jobs?status=completed&channel=telegram", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list map[string]interface{}
	decode(t, rec, &list)
	assert.Equal(t, float64(1), list["count"])
}
