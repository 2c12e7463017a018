// Package metrics exposes checkout counters in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "repairpos"

// Coupon validation outcomes
const (
	CouponApplied     = "applied"
	CouponRejected    = "rejected"
	CouponUnavailable = "unavailable"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	quotes            prometheus.Counter
	couponValidations *prometheus.CounterVec
	sales             *prometheus.CounterVec
	salesAmount       *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		quotes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_quotes_total",
			Help:      "Number of server-side totals computations.",
		}),
		couponValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_validations_total",
			Help:      "Coupon validations by outcome.",
		}, []string{"outcome"}),
		sales: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_total",
			Help:      "Sales recorded by payment method and status.",
		}, []string{"payment_method", "status"}),
		salesAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_amount_total",
			Help:      "Sum of completed sale totals by payment method.",
		}, []string{"payment_method"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.quotes,
		m.couponValidations,
		m.sales,
		m.salesAmount,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) QuoteComputed() {
	if m == nil {
		return
	}
	m.quotes.Inc()
}

func (m *Metrics) CouponValidated(outcome string) {
	if m == nil {
		return
	}
	m.couponValidations.WithLabelValues(outcome).Inc()
}

// SaleRecorded counts a sale; completed sales also add to the amount counter
func (m *Metrics) SaleRecorded(method, status string, total decimal.Decimal) {
	if m == nil {
		return
	}
	m.sales.WithLabelValues(method, status).Inc()
	if status == "completed" {
		m.salesAmount.WithLabelValues(method).Add(total.InexactFloat64())
	}
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
