package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/dvloznov/expense-bot/internal/metrics"
)

// ErrModelUnavailable is returned while the breaker is open.
var ErrModelUnavailable = errors.New("assistant: language model unavailable")

// BreakerConfig tunes the circuit breaker around the model.
type BreakerConfig struct {
	Name string
	// Timeout bounds a single model call.
	Timeout time.Duration
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold uint32
	// OpenTimeout is how long the circuit stays open before probing.
	OpenTimeout time.Duration
	MaxRequests uint32
	Interval    time.Duration
}

// BreakerModel fails fast while the model is down instead of queueing
// messages behind a dead upstream. It never retries.
type BreakerModel struct {
	inner   Model
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

// NewBreakerModel wraps inner.
func NewBreakerModel(inner Model, cfg BreakerConfig, log zerolog.Logger, m metrics.Collector) *BreakerModel {
	if cfg.Name == "" {
		cfg.Name = "intent-model"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if m == nil {
		m = metrics.NoOpCollector{}
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
			state := metrics.CircuitClosed
			switch to {
			case gobreaker.StateOpen:
				state = metrics.CircuitOpen
			case gobreaker.StateHalfOpen:
				state = metrics.CircuitHalfOpen
			}
			m.RecordCircuitState(name, state)
		},
	}

	return &BreakerModel{
		inner:   inner,
		cb:      gobreaker.NewCircuitBreaker(settings),
		timeout: cfg.Timeout,
	}
}

var _ Model = (*BreakerModel)(nil)

// Generate calls the inner model through the breaker with a timeout.
func (b *BreakerModel) Generate(ctx context.Context, req ModelRequest) (string, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Generate(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("Generate: %w", ErrModelUnavailable)
		}
		return "", err
	}
	return out.(string), nil
}
