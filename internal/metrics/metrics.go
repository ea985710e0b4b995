// Package metrics records message handling, dispatch and HTTP metrics.
package metrics

import "time"

// Collector receives measurements from the assistant, gateway and API layers.
type Collector interface {
	// RecordResolution counts one intent resolution by outcome
	// (resolved, unresolved, parse_error, model_error, empty).
	RecordResolution(outcome string, duration time.Duration)
	// RecordDispatch counts one dispatch by operation and outcome
	// (dispatched, errored, fallback, duplicate).
	RecordDispatch(operation, outcome string, duration time.Duration)
	RecordDelivery(channel string, success bool)
	RecordHTTPRequest(route string, status int, duration time.Duration)
	RecordCircuitState(name string, state CircuitState)
}

// CircuitState mirrors the breaker states exported as a gauge.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOpCollector discards everything.
type NoOpCollector struct{}

func (NoOpCollector) RecordResolution(outcome string, duration time.Duration) {}

func (NoOpCollector) RecordDispatch(operation, outcome string, duration time.Duration) {}

func (NoOpCollector) RecordDelivery(channel string, success bool) {}

func (NoOpCollector) RecordHTTPRequest(route string, status int, duration time.Duration) {}

func (NoOpCollector) RecordCircuitState(name string, state CircuitState) {}
