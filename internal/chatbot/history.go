package chatbot

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/expense-bot/internal/kv"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one stored message of a conversation.
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// History keeps the most recent turns of each chat in a kv.Store.
type History struct {
	store kv.Store
	limit int
	ttl   time.Duration
}

func NewHistory(store kv.Store, limit int, ttl time.Duration) *History {
	if limit <= 0 {
		limit = 20
	}
	return &History{store: store, limit: limit, ttl: ttl}
}

func historyKey(chatID string) string {
	return "chatbot:history:" + chatID
}

// Load returns up to limit turns, oldest first.
func (h *History) Load(ctx context.Context, chatID string) ([]Turn, error) {
	var turns []Turn
	if err := kv.GetJSON(ctx, h.store, historyKey(chatID), &turns); err != nil {
		if kv.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("Load: %w", err)
	}
	if len(turns) > h.limit {
		turns = turns[len(turns)-h.limit:]
	}
	return turns, nil
}

// Append adds turns under the chat's lock and trims to limit. The TTL
// restarts on every write.
func (h *History) Append(ctx context.Context, chatID string, turns ...Turn) error {
	key := historyKey(chatID)
	unlock, err := h.store.Lock(ctx, key+":lock", 5*time.Second)
	if err != nil {
		return fmt.Errorf("Append: lock: %w", err)
	}
	defer unlock()

	existing, err := h.Load(ctx, chatID)
	if err != nil {
		return fmt.Errorf("Append: %w", err)
	}
	all := append(existing, turns...)
	if len(all) > h.limit {
		all = all[len(all)-h.limit:]
	}
	if err := kv.SetJSON(ctx, h.store, key, all, h.ttl); err != nil {
		return fmt.Errorf("Append: %w", err)
	}
	return nil
}

// Clear drops a chat's history.
func (h *History) Clear(ctx context.Context, chatID string) error {
	return h.store.Delete(ctx, historyKey(chatID))
}
