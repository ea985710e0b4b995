package assistant

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-bot/internal/kv"
	"github.com/dvloznov/expense-bot/internal/metrics"
)

// DefaultFallbackError prefixes the fallback reply when the resolver gave no reason.
const DefaultFallbackError = "I couldn't understand that."

// UsageExamples are listed in every fallback reply.
var UsageExamples = []string{
	"I spent 30 dollars on food",
	"I got paid 2000 salary",
	"what is my balance?",
	"show me today's expenses",
	"weekly summary",
	"monthly summary",
	"how much did I spend on groceries?",
	"spending trends last 7 days",
}

// FallbackReply is the reply for messages that resolve to no operation.
func FallbackReply(reason string) string {
	if strings.TrimSpace(reason) == "" {
		reason = DefaultFallbackError
	}
	var b strings.Builder
	b.WriteString(reason)
	b.WriteString("\nExamples:")
	for _, ex := range UsageExamples {
		b.WriteString("\n- ")
		b.WriteString(ex)
	}
	return b.String()
}

// Dispatcher executes resolved intents. It is request scoped and never retries.
type Dispatcher struct {
	registry        *Registry
	log             zerolog.Logger
	metrics         metrics.Collector
	defaultCurrency string

	store          kv.Store
	idempotencyTTL time.Duration
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMetrics reports dispatch outcomes to m.
func WithMetrics(m metrics.Collector) DispatcherOption {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithDefaultCurrency sets the currency used when a write names none.
func WithDefaultCurrency(code string) DispatcherOption {
	return func(d *Dispatcher) {
		if code != "" {
			d.defaultCurrency = strings.ToUpper(code)
		}
	}
}

// WithIdempotency deduplicates write operations that carry an idempotency
// key, remembering their reply for ttl.
func WithIdempotency(store kv.Store, ttl time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.store = store
		d.idempotencyTTL = ttl
	}
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry, log zerolog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry:        registry,
		log:             log,
		metrics:         metrics.NoOpCollector{},
		defaultCurrency: "CAD",
		idempotencyTTL:  24 * time.Hour,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs intent to completion and returns the reply text. It always
// returns some text; failures are logged and rendered as
// "Error executing <op>: <cause>".
func (d *Dispatcher) Dispatch(ctx context.Context, intent ResolvedIntent) string {
	start := time.Now()
	// Once an intent is resolved it runs to completion.
	ctx = context.WithoutCancel(ctx)

	if intent.IsUnresolved() {
		d.metrics.RecordDispatch(string(Unresolved), "fallback", time.Since(start))
		return FallbackReply(intent.Error)
	}

	exec, ok := d.registry.Resolve(intent.Operation)
	if !ok {
		d.log.Warn().Str("operation", string(intent.Operation)).Msg("Model named an operation outside the registry")
		d.metrics.RecordDispatch("not_found", "fallback", time.Since(start))
		return FallbackReply(intent.Error)
	}

	desc := exec.Descriptor()
	op := string(desc.Operation)
	log := d.log.With().Str("operation", op).Logger()

	args, err := desc.Decode(ArgsInput{
		Raw:             intent.Arguments,
		Message:         intent.Message,
		DefaultCurrency: d.defaultCurrency,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Invalid operation arguments")
		d.metrics.RecordDispatch(op, "errored", time.Since(start))
		return errorReply(desc.Operation, err)
	}

	var (
		reply   string
		outcome = "dispatched"
	)
	if desc.Mutates && intent.IdempotencyKey != "" && d.store != nil {
		reply, outcome, err = d.executeOnce(ctx, exec, args, intent.IdempotencyKey)
	} else {
		reply, err = d.safeExecute(ctx, exec, args)
	}
	if err != nil {
		log.Error().Err(err).Msg("Operation failed")
		d.metrics.RecordDispatch(op, "errored", time.Since(start))
		return errorReply(desc.Operation, err)
	}

	d.metrics.RecordDispatch(op, outcome, time.Since(start))
	log.Info().Str("outcome", outcome).Dur("duration", time.Since(start)).Msg("Operation dispatched")
	return reply
}

// executeOnce runs a write at most once per idempotency key. Store failures
// degrade to a plain execution.
func (d *Dispatcher) executeOnce(ctx context.Context, exec Executor, args Args, key string) (string, string, error) {
	storeKey := "dispatch:" + args.User() + ":" + key

	lockCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	unlock, err := d.store.Lock(lockCtx, storeKey, 30*time.Second)
	cancel()
	if err != nil {
		d.log.Warn().Err(err).Str("key", storeKey).Msg("Idempotency lock unavailable, executing anyway")
		reply, err := d.safeExecute(ctx, exec, args)
		return reply, "dispatched", err
	}
	defer unlock()

	cached, err := d.store.Get(ctx, storeKey)
	if err == nil {
		return string(cached), "duplicate", nil
	}
	if !kv.IsNotFound(err) {
		d.log.Warn().Err(err).Str("key", storeKey).Msg("Idempotency lookup failed")
	}

	reply, err := d.safeExecute(ctx, exec, args)
	if err != nil {
		return "", "errored", err
	}
	if err := d.store.Set(ctx, storeKey, []byte(reply), d.idempotencyTTL); err != nil {
		d.log.Warn().Err(err).Str("key", storeKey).Msg("Failed to record idempotency key")
	}
	return reply, "dispatched", nil
}

// safeExecute converts executor panics into errors.
func (d *Dispatcher) safeExecute(ctx context.Context, exec Executor, args Args) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
			d.log.Error().Str("stack", string(debug.Stack())).Msg("Executor panicked")
		}
	}()
	return exec.Execute(ctx, args)
}

func errorReply(op Operation, err error) string {
	return fmt.Sprintf("Error executing %s: %v", op, err)
}
