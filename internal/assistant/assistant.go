package assistant

import "context"

// Message is one inbound chat message as the core sees it.
type Message struct {
	Text   string
	UserID string
	// ID is the transport message id, used as an idempotency key for writes.
	ID string
}

// Assistant resolves and dispatches one message per call.
type Assistant struct {
	resolver   *Resolver
	dispatcher *Dispatcher
}

// New wires a resolver to a dispatcher.
func New(resolver *Resolver, dispatcher *Dispatcher) *Assistant {
	return &Assistant{resolver: resolver, dispatcher: dispatcher}
}

// Reply returns exactly one reply for msg.
func (a *Assistant) Reply(ctx context.Context, msg Message) string {
	intent := a.resolver.Resolve(ctx, msg.Text, msg.UserID)
	intent.IdempotencyKey = msg.ID
	return a.dispatcher.Dispatch(ctx, intent)
}
