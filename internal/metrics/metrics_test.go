package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Validation("fulfillable", true)
	m.Transaction("borrow", "confirmed", time.Second)
	m.RelayCheck("fresh", time.Second)
	assert.Nil(t, m.Registry())
}

func TestCountersRecord(t *testing.T) {
	m := New()
	m.Validation("rate_exceeded", true)
	m.Validation("rate_exceeded", false)
	m.Transaction("approve", "confirmed", 3*time.Second)
	m.Archived("transactions", 12)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.validations.WithLabelValues("rate_exceeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resorts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transactions.WithLabelValues("approve", "confirmed")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.archivedRecord.WithLabelValues("transactions")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.HTTPRequest("GET /api/orderbook", 200, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `credbook_http_requests_total{route="GET /api/orderbook",status="2xx"} 1`)
}
