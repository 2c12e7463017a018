package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.QuoteComputed()
	m.QuoteComputed()
	m.CouponValidated(CouponRejected)
	m.SaleRecorded("cash", "completed", decimal.RequireFromString("22.50"))
	m.SaleRecorded("stripe", "pending", decimal.RequireFromString("10"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.quotes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.couponValidations.WithLabelValues(CouponRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sales.WithLabelValues("stripe", "pending")))
	assert.Equal(t, 22.5, testutil.ToFloat64(m.salesAmount.WithLabelValues("cash")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.salesAmount.WithLabelValues("stripe")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.QuoteComputed()
		m.CouponValidated(CouponApplied)
		m.SaleRecorded("cash", "completed", decimal.NewFromInt(1))
		m.ObserveRequest("GET", "/health", 200, time.Millisecond)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveRequest("POST", "/api/v1/checkout/quote", 200, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), "repairpos_http_request_duration_seconds"))
}
