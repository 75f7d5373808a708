package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the HTTP and invoice collectors of one server instance
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	invoiceChanges  *prometheus.CounterVec
	saveFailures    *prometheus.CounterVec
}

// NewMetrics registers the collectors on a private registry
func NewMetrics(environment string) *Metrics {
	environment = strings.TrimSpace(environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": "rechnung",
		"env":     environment,
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "rechnung_http_requests_total",
			Help:        "HTTP requests by route and status.",
			ConstLabels: constLabels,
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "rechnung_http_request_duration_seconds",
			Help:        "HTTP request latency by route.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}, []string{"method", "route"}),
		invoiceChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "rechnung_invoice_changes_total",
			Help:        "Stored invoice changes by event type.",
			ConstLabels: constLabels,
		}, []string{"type"}),
		saveFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "rechnung_invoice_save_failures_total",
			Help:        "Rejected invoice saves by reason.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
	}
	m.registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.invoiceChanges,
		m.saveFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Middleware records one sample per request, labelled by route template
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
	return gin.WrapH(h)
}

func (m *Metrics) InvoiceChanged(typ EventType) {
	if m == nil {
		return
	}
	m.invoiceChanges.WithLabelValues(string(typ)).Inc()
}

func (m *Metrics) SaveFailed(reason string) {
	if m == nil {
		return
	}
	m.saveFailures.WithLabelValues(reason).Inc()
}
