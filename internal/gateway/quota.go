package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/expense-bot/internal/kv"
)

// Quota caps messages per chat within a rolling window. A zero max disables it.
type Quota struct {
	store  kv.Store
	max    int
	window time.Duration
}

func NewQuota(store kv.Store, max int, window time.Duration) *Quota {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Quota{store: store, max: max, window: window}
}

// Allow counts one message for chat and reports whether it is within quota.
func (q *Quota) Allow(ctx context.Context, channel Channel, chatID string) (bool, error) {
	if q == nil || q.max <= 0 || q.store == nil {
		return true, nil
	}
	n, err := q.store.Incr(ctx, fmt.Sprintf("quota:%s:%s", channel, chatID), q.window)
	if err != nil {
		return false, fmt.Errorf("Allow: increment counter: %w", err)
	}
	return n <= int64(q.max), nil
}
