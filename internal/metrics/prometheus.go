package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector implements Collector with client_golang vectors.
type PrometheusCollector struct {
	resolutions       *prometheus.CounterVec
	resolutionLatency *prometheus.HistogramVec
	dispatches        *prometheus.CounterVec
	dispatchLatency   *prometheus.HistogramVec
	deliveries        *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpLatency       *prometheus.HistogramVec
	circuitState      *prometheus.GaugeVec
}

// NewPrometheusCollector creates collectors under namespace.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	return &PrometheusCollector{
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "intent_resolutions_total",
				Help:      "Intent resolutions by outcome",
			},
			[]string{"outcome"},
		),
		resolutionLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "intent_resolution_duration_seconds",
				Help:      "Language model round trip for intent resolution",
				Buckets:   []float64{.1, .25, .5, 1, 2, 4, 8, 16},
			},
			[]string{"outcome"},
		),
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatches_total",
				Help:      "Dispatched operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		dispatchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Operation execution latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deliveries_total",
				Help:      "Outbound chat deliveries by channel and status",
			},
			[]string{"channel", "status"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
	}
}

var _ Collector = (*PrometheusCollector)(nil)

func (pc *PrometheusCollector) RecordResolution(outcome string, duration time.Duration) {
	pc.resolutions.WithLabelValues(outcome).Inc()
	pc.resolutionLatency.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordDispatch(operation, outcome string, duration time.Duration) {
	pc.dispatches.WithLabelValues(operation, outcome).Inc()
	pc.dispatchLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordDelivery(channel string, success bool) {
	status := "ok"
	if !success {
		status = "failed"
	}
	pc.deliveries.WithLabelValues(channel, status).Inc()
}

func (pc *PrometheusCollector) RecordHTTPRequest(route string, status int, duration time.Duration) {
	pc.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	pc.httpLatency.WithLabelValues(route).Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordCircuitState(name string, state CircuitState) {
	pc.circuitState.WithLabelValues(name).Set(float64(state))
}

// Register adds all collectors to registry.
func (pc *PrometheusCollector) Register(registry *prometheus.Registry) error {
	collectors := []prometheus.Collector{
		pc.resolutions,
		pc.resolutionLatency,
		pc.dispatches,
		pc.dispatchLatency,
		pc.deliveries,
		pc.httpRequests,
		pc.httpLatency,
		pc.circuitState,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler serves registry in the Prometheus exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
