package telegram

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-bot/internal/gateway"
)

// Handler receives the user messages of one getUpdates batch in order.
type Handler func(ctx context.Context, msgs []gateway.InboundMessage)

// Updater is the slice of the Bot API the poller needs.
type Updater interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, int64, error)
	DeleteWebhook(ctx context.Context, dropPending bool) error
}

var _ Updater = (*Client)(nil)

// Poller long-polls getUpdates and hands messages to a Handler.
type Poller struct {
	api         Updater
	handle      Handler
	timeout     time.Duration
	backoff     time.Duration
	dropPending bool
	log         zerolog.Logger
}

type PollerOption func(*Poller)

func WithPollTimeout(d time.Duration) PollerOption {
	return func(p *Poller) { p.timeout = d }
}

func WithBackoff(d time.Duration) PollerOption {
	return func(p *Poller) { p.backoff = d }
}

// WithDropPending discards updates queued while the bot was offline.
func WithDropPending(drop bool) PollerOption {
	return func(p *Poller) { p.dropPending = drop }
}

func NewPoller(api Updater, handle Handler, log zerolog.Logger, opts ...PollerOption) *Poller {
	p := &Poller{
		api:     api,
		handle:  handle,
		timeout: 30 * time.Second,
		backoff: 3 * time.Second,
		log:     log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until ctx is cancelled. Transport errors are logged and retried
// after the backoff.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.api.DeleteWebhook(ctx, p.dropPending); err != nil {
		p.log.Warn().Err(err).Msg("Failed to delete webhook before polling")
	}
	p.log.Info().Dur("timeout", p.timeout).Msg("Telegram polling started")

	var offset int64
	for {
		if ctx.Err() != nil {
			p.log.Info().Msg("Telegram polling stopped")
			return nil
		}

		updates, next, err := p.api.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.log.Error().Err(err).Msg("Failed to get updates")
			select {
			case <-ctx.Done():
			case <-time.After(p.backoff):
			}
			continue
		}
		offset = next

		var msgs []gateway.InboundMessage
		for _, u := range updates {
			if msg, ok := ToInbound(u); ok {
				msgs = append(msgs, msg)
			}
		}
		if len(msgs) > 0 {
			p.handle(ctx, msgs)
		}
	}
}
