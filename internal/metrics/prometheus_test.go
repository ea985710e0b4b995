package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector_Counts(t *testing.T) {
	pc := NewPrometheusCollector("expensebot")

	pc.RecordResolution("resolved", 300*time.Millisecond)
	pc.RecordResolution("resolved", 200*time.Millisecond)
	pc.RecordDispatch("create_expense", "dispatched", time.Millisecond)
	pc.RecordDispatch("get_balance", "errored", time.Millisecond)
	pc.RecordDelivery("whatsapp", false)
	pc.RecordCircuitState("gemini", CircuitOpen)

	assert.Equal(t, 2.0, testutil.ToFloat64(pc.resolutions.WithLabelValues("resolved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pc.dispatches.WithLabelValues("get_balance", "errored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pc.deliveries.WithLabelValues("whatsapp", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pc.circuitState.WithLabelValues("gemini")))
}

func TestPrometheusCollector_RegisterAndServe(t *testing.T) {
	registry := prometheus.NewRegistry()
	pc := NewPrometheusCollector("expensebot")
	require.NoError(t, pc.Register(registry))
	assert.Error(t, pc.Register(registry), "double registration must fail")

	pc.RecordHTTPRequest("/api/chat", http.StatusOK, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `expensebot_http_requests_total{code="200",route="/api/chat"} 1`))
}

func TestCircuitStateString(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}
