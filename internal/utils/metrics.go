package utils

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector tracks request and store-operation metrics.
type MetricsCollector struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	errors         *prometheus.CounterVec
	operationTimes *prometheus.HistogramVec
}

func NewMetricsCollector() *MetricsCollector {
	mc := &MetricsCollector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memories",
			Name:      "http_requests_total",
			Help:      "HTTP requests handled, by route, method and status.",
		}, []string{"route", "method", "status"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memories",
			Name:      "http_errors_total",
			Help:      "HTTP responses with a status of 400 or above, by route.",
		}, []string{"route"}),
		operationTimes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "memories",
			Name:      "operation_duration_seconds",
			Help:      "Latency of store operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	mc.registry.MustRegister(
		mc.requests,
		mc.errors,
		mc.operationTimes,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return mc
}

func (mc *MetricsCollector) IncrementRequests(route, method string, status int) {
	mc.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}

func (mc *MetricsCollector) IncrementErrors(route string) {
	mc.errors.WithLabelValues(route).Inc()
}

func (mc *MetricsCollector) AddOperationLatency(operationName string, duration time.Duration) {
	mc.operationTimes.WithLabelValues(operationName).Observe(duration.Seconds())
}

// Handler exposes the collected metrics in the Prometheus text format.
func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	return mc.registry
}
