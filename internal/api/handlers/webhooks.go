package handlers

import (
	"crypto/subtle"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-bot/internal/api/middleware"
	"github.com/dvloznov/expense-bot/internal/gateway"
	"github.com/dvloznov/expense-bot/internal/gateway/telegram"
	"github.com/dvloznov/expense-bot/internal/gateway/whatsapp"
	"github.com/dvloznov/expense-bot/internal/jobs"
)

// WebhooksHandler acknowledges transport webhooks and queues their messages.
type WebhooksHandler struct {
	publisher           jobs.Publisher
	whatsappVerifyToken string
	telegramSecret      string
	log                 zerolog.Logger
}

// NewWebhooksHandler creates a new webhooks handler. An empty telegramSecret
// skips the secret header check.
func NewWebhooksHandler(publisher jobs.Publisher, whatsappVerifyToken, telegramSecret string, log zerolog.Logger) *WebhooksHandler {
	return &WebhooksHandler{
		publisher:           publisher,
		whatsappVerifyToken: whatsappVerifyToken,
		telegramSecret:      telegramSecret,
		log:                 log,
	}
}

// VerifyWhatsApp handles GET /webhook/whatsapp
func (h *WebhooksHandler) VerifyWhatsApp(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge, ok := whatsapp.Verify(q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"), h.whatsappVerifyToken)
	if !ok {
		h.log.Warn().Str("mode", q.Get("hub.mode")).Msg("WhatsApp webhook verification failed")
		middleware.WriteError(w, http.StatusForbidden, "Verification failed")
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, challenge)
}

// WhatsApp handles POST /webhook/whatsapp
func (h *WebhooksHandler) WhatsApp(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	msgs, err := whatsapp.ParseWebhook(body)
	if err != nil {
		h.log.Warn().Err(err).Msg("Ignoring malformed WhatsApp payload")
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	h.enqueue(w, r, gateway.ChannelWhatsApp, msgs)
}

// Telegram handles POST /webhook/telegram
func (h *WebhooksHandler) Telegram(w http.ResponseWriter, r *http.Request) {
	if h.telegramSecret != "" {
		got := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.telegramSecret)) != 1 {
			middleware.WriteError(w, http.StatusUnauthorized, "Invalid secret token")
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	update, err := telegram.ParseUpdate(body)
	if err != nil {
		h.log.Warn().Err(err).Msg("Ignoring malformed Telegram update")
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	var msgs []gateway.InboundMessage
	if msg, ok := telegram.ToInbound(update); ok {
		msgs = append(msgs, msg)
	}
	h.enqueue(w, r, gateway.ChannelTelegram, msgs)
}

// enqueue acknowledges with "ignored" when there is nothing to process, so
// the transport does not redeliver status-only payloads.
func (h *WebhooksHandler) enqueue(w http.ResponseWriter, r *http.Request, channel gateway.Channel, msgs []gateway.InboundMessage) {
	if len(msgs) == 0 {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	job := &jobs.ProcessMessagesJob{Channel: channel, Messages: msgs}
	if err := h.publisher.PublishProcessMessages(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("channel", string(channel)).Msg("Failed to enqueue messages")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to enqueue messages")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("channel", string(channel)).
		Int("messages", len(msgs)).
		Msg("Messages enqueued")

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "processed",
		"job_id": job.JobID,
	})
}
