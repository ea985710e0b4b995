package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-bot/internal/api/middleware"
	"github.com/dvloznov/expense-bot/internal/assistant"
)

// Replier is satisfied by *assistant.Assistant.
type Replier interface {
	Reply(ctx context.Context, msg assistant.Message) string
}

var _ Replier = (*assistant.Assistant)(nil)

// ChatHandler exposes the assistant over HTTP.
type ChatHandler struct {
	assistant Replier
	log       zerolog.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(a Replier, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{assistant: a, log: log}
}

type chatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
	// MessageID is optional; when set, a retried request does not write twice.
	MessageID string `json:"message_id,omitempty"`
}

// Chat handles POST /api/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	userID, ok := resolveUser(r, req.UserID)
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	reply := h.assistant.Reply(r.Context(), assistant.Message{Text: req.Message, UserID: userID, ID: req.MessageID})

	h.log.Debug().Str("user_id", userID).Int("reply_length", len(reply)).Msg("Chat reply sent")
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"response": reply})
}
