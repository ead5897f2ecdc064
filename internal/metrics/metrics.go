// Package metrics exposes Prometheus instrumentation for the API and the
// optimization engine.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the service registers.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	OptimizationJobs    *prometheus.CounterVec
	OptimizationSeconds prometheus.Histogram

	InjectionDetections prometheus.Counter
	GuardrailViolations prometheus.Counter

	LLMRequests *prometheus.CounterVec
	LLMDuration *prometheus.HistogramVec

	TemplateRenders prometheus.Counter
}

// New registers the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto(registry)

	m := &Metrics{
		registry: registry,
		HTTPRequests: factory.counterVec(prometheus.CounterOpts{
			Name: "promptforge_http_requests_total",
			Help: "HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.histogramVec(prometheus.HistogramOpts{
			Name:    "promptforge_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		OptimizationJobs: factory.counterVec(prometheus.CounterOpts{
			Name: "promptforge_optimization_jobs_total",
			Help: "Optimization jobs by terminal status.",
		}, []string{"status"}),
		OptimizationSeconds: factory.histogram(prometheus.HistogramOpts{
			Name:    "promptforge_optimization_duration_seconds",
			Help:    "Wall-clock duration of optimization runs.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		InjectionDetections: factory.counter(prometheus.CounterOpts{
			Name: "promptforge_injection_detections_total",
			Help: "Prompts flagged by the injection detector.",
		}),
		GuardrailViolations: factory.counter(prometheus.CounterOpts{
			Name: "promptforge_guardrail_violations_total",
			Help: "Guardrail violations found during validation.",
		}),
		LLMRequests: factory.counterVec(prometheus.CounterOpts{
			Name: "promptforge_llm_requests_total",
			Help: "LLM generations by provider and outcome.",
		}, []string{"provider", "outcome"}),
		LLMDuration: factory.histogramVec(prometheus.HistogramOpts{
			Name:    "promptforge_llm_request_duration_seconds",
			Help:    "LLM generation latency by provider.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider"}),
		TemplateRenders: factory.counter(prometheus.CounterOpts{
			Name: "promptforge_template_renders_total",
			Help: "Template render operations.",
		}),
	}
	return m
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// Middleware records per-request counters and latency.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(
			c.Request.Method, route, strconv.Itoa(c.Writer.Status()),
		).Inc()
		m.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// ObserveLLM records one generation attempt.
func (m *Metrics) ObserveLLM(provider string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.LLMRequests.WithLabelValues(provider, outcome).Inc()
	m.LLMDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// factory wraps a registry so collector construction stays one-liners.
type factory struct {
	registry *prometheus.Registry
}

func promauto(registry *prometheus.Registry) factory {
	return factory{registry: registry}
}

func (f factory) counter(opts prometheus.CounterOpts) prometheus.Counter {
	c := prometheus.NewCounter(opts)
	f.registry.MustRegister(c)
	return c
}

func (f factory) counterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	f.registry.MustRegister(c)
	return c
}

func (f factory) histogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	h := prometheus.NewHistogram(opts)
	f.registry.MustRegister(h)
	return h
}

func (f factory) histogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(opts, labels)
	f.registry.MustRegister(h)
	return h
}
