package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	statusSuccess  = "success"
	statusNotFound = "not_found"
	statusInvalid  = "invalid"
	statusError    = "error"
)

// Metrics holds the Prometheus collectors for the HTTP API and the store.
// A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	storeOpsTotal   *prometheus.CounterVec
	storeOpDuration *prometheus.HistogramVec
	storeItems      prometheus.Gauge
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inventory_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		storeOpsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_store_operations_total",
				Help: "Total number of item store operations",
			},
			[]string{"operation", "status"},
		),
		storeOpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inventory_store_operation_duration_seconds",
				Help:    "Item store operation duration in seconds",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation"},
		),
		storeItems: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "inventory_store_items",
				Help: "Number of items in the live collection after the last write",
			},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeHTTP(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) observeStoreOp(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := statusSuccess
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		status = statusNotFound
	case errors.Is(err, ErrInvalidInput):
		status = statusInvalid
	default:
		status = statusError
	}
	m.storeOpsTotal.WithLabelValues(op, status).Inc()
	m.storeOpDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) setItems(n int) {
	if m == nil {
		return
	}
	m.storeItems.Set(float64(n))
}
