// Package telemetry exposes Prometheus metrics for the HTTP server and the
// diagnosis engine.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "diagnose"

var defaultDurationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Metrics owns a private registry so tests can build independent instances.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	active   prometheus.Gauge

	inferences prometheus.Counter
	diagnoses  prometheus.Histogram
	reloads    *prometheus.CounterVec
	rules      prometheus.Gauge
	version    prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help: "HTTP request latency.", Buckets: defaultDurationBuckets,
		}, []string{"method", "route"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "http", Name: "active_requests",
			Help: "Requests currently being served.",
		}),
		inferences: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "inferences_total",
			Help: "Completed inference calls.",
		}),
		diagnoses: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "inference_diagnoses",
			Help:    "Diagnoses reached per inference call.",
			Buckets: prometheus.LinearBuckets(0, 1, 10),
		}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "rules", Name: "reloads_total",
			Help: "Rule load attempts by result.",
		}, []string{"result"}),
		rules: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "rules", Name: "loaded",
			Help: "Rules in the current snapshot.",
		}),
		version: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "rules", Name: "version",
			Help: "Version of the current rule snapshot.",
		}),
	}
	m.registry.MustRegister(
		m.requests, m.duration, m.active,
		m.inferences, m.diagnoses, m.reloads, m.rules, m.version,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Middleware records request counts and latency labelled by route pattern.
// A panicking handler is counted as a 500; the panic itself still reaches the
// recovery middleware further out.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			m.active.Inc()
			start := time.Now()
			panicked := true

			defer func() {
				m.active.Dec()
				status := c.Response().Status
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
				if panicked {
					status = http.StatusInternalServerError
				}
				route := c.Path()
				if route == "" {
					route = "unmatched"
				}
				method := c.Request().Method
				m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
				m.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			}()

			err = next(c)
			panicked = false
			return err
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// ObserveInference records one completed inference with n diagnoses.
func (m *Metrics) ObserveInference(n int) {
	m.inferences.Inc()
	m.diagnoses.Observe(float64(n))
}

// ObserveReload records a rule load attempt. rules and version are ignored
// when err is non-nil.
func (m *Metrics) ObserveReload(rules int, version uint64, err error) {
	if err != nil {
		m.reloads.WithLabelValues("error").Inc()
		return
	}
	m.reloads.WithLabelValues("ok").Inc()
	m.rules.Set(float64(rules))
	m.version.Set(float64(version))
}
