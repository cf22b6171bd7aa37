// Package metrics exposes Prometheus collectors for the monitor and the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry. All Record methods are safe on a nil
// receiver so callers can run without metrics.
type Metrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	cyclesTotal      *prometheus.CounterVec
	cycleDuration    prometheus.Histogram
	grantsProcessed  prometheus.Gauge
	highPriority     prometheus.Gauge
	alertsSent       *prometheus.CounterVec
	sourceErrors     *prometheus.CounterVec
	sourceGrants     *prometheus.GaugeVec
	guidanceRequests *prometheus.CounterVec
}

func New(service string) *Metrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grants",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "grants",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	cyclesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grants",
			Subsystem: "monitor",
			Name:      "cycles_total",
			Help:      "Monitoring cycles by final status.",
		},
		[]string{"service", "status"},
	)
	cycleDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "grants",
			Subsystem:   "monitor",
			Name:        "cycle_duration_seconds",
			Help:        "Duration of a full monitoring cycle.",
			Buckets:     []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	grantsProcessed := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "grants",
			Subsystem:   "monitor",
			Name:        "grants_processed",
			Help:        "Grants scored in the last cycle.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	highPriority := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "grants",
			Subsystem:   "monitor",
			Name:        "high_priority_grants",
			Help:        "Grants at or above the alert threshold in the last cycle.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	alertsSent := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grants",
			Subsystem: "notify",
			Name:      "alerts_total",
			Help:      "Alerts dispatched by type and outcome.",
		},
		[]string{"service", "type", "status"},
	)
	sourceErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grants",
			Subsystem: "ingest",
			Name:      "source_errors_total",
			Help:      "Failed source scans.",
		},
		[]string{"service", "source"},
	)
	sourceGrants := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "grants",
			Subsystem: "ingest",
			Name:      "source_grants",
			Help:      "Grants returned by each source in the last scan.",
		},
		[]string{"service", "source"},
	)
	guidanceRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "grants",
			Subsystem: "assist",
			Name:      "requests_total",
			Help:      "Application assistance requests by type.",
		},
		[]string{"service", "type"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		cyclesTotal,
		cycleDuration,
		grantsProcessed,
		highPriority,
		alertsSent,
		sourceErrors,
		sourceGrants,
		guidanceRequests,
	)

	return &Metrics{
		registry:         registry,
		service:          service,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		cyclesTotal:      cyclesTotal,
		cycleDuration:    cycleDuration,
		grantsProcessed:  grantsProcessed,
		highPriority:     highPriority,
		alertsSent:       alertsSent,
		sourceErrors:     sourceErrors,
		sourceGrants:     sourceGrants,
		guidanceRequests: guidanceRequests,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests that gather collected values.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// EchoMiddleware records request counts and latency labelled by route
// template, so /grants/:id stays one series.
func (m *Metrics) EchoMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method
			m.requestTotal.WithLabelValues(m.service, method, path, strconv.Itoa(status)).Inc()
			m.requestDuration.WithLabelValues(m.service, method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (m *Metrics) RecordCycle(duration time.Duration, processed, highPriority int, err error) {
	if m == nil {
		return
	}
	status := "completed"
	if err != nil {
		status = "failed"
	}
	m.cyclesTotal.WithLabelValues(m.service, status).Inc()
	m.cycleDuration.Observe(duration.Seconds())
	m.grantsProcessed.Set(float64(processed))
	m.highPriority.Set(float64(highPriority))
}

func (m *Metrics) RecordAlert(kind string, err error) {
	if m == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	m.alertsSent.WithLabelValues(m.service, kind, status).Inc()
}

func (m *Metrics) RecordSource(source string, grants int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.sourceErrors.WithLabelValues(m.service, source).Inc()
		return
	}
	m.sourceGrants.WithLabelValues(m.service, source).Set(float64(grants))
}

func (m *Metrics) RecordAssist(kind string) {
	if m == nil {
		return
	}
	m.guidanceRequests.WithLabelValues(m.service, kind).Inc()
}
