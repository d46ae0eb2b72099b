package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics holds all Prometheus metrics
type PrometheusMetrics struct {
	// HTTP request metrics
	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec
	HttpResponseSize    *prometheus.HistogramVec

	// Snapshot metrics
	SnapshotLoads    *prometheus.CounterVec
	SnapshotDuration prometheus.Histogram
	SnapshotErrors   *prometheus.CounterVec
	ReplayedCommits  prometheus.Counter
	ActiveFiles      prometheus.Gauge
}

var (
	metrics *PrometheusMetrics
)

// InitMetrics registers all metrics with reg. A nil reg uses the default
// registerer.
func InitMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	metrics = &PrometheusMetrics{
		HttpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "delta_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HttpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "delta_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		HttpResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "delta_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "endpoint"},
		),

		SnapshotLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "delta_snapshot_loads_total",
				Help: "Total number of snapshot loads",
			},
			[]string{"status"},
		),
		SnapshotDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "delta_snapshot_load_duration_seconds",
				Help:    "Snapshot load time in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		SnapshotErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "delta_snapshot_errors_total",
				Help: "Total number of failed snapshot loads by error kind",
			},
			[]string{"kind"},
		),
		ReplayedCommits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "delta_replayed_commits_total",
				Help: "Total number of commit files replayed",
			},
		),
		ActiveFiles: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "delta_active_files",
				Help: "Active file count of the most recently loaded snapshot",
			},
		),
	}
	return metrics
}

// GetMetrics returns the initialized metrics
func GetMetrics() *PrometheusMetrics {
	return metrics
}

// PrometheusMiddleware is a Gin middleware that records HTTP metrics
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		metrics.HttpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
		metrics.HttpRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
		if c.Writer.Size() > 0 {
			metrics.HttpResponseSize.WithLabelValues(method, endpoint).Observe(float64(c.Writer.Size()))
		}
	}
}

// RecordSnapshotLoad records a successful snapshot load
func RecordSnapshotLoad(duration time.Duration, replayedCommits, activeFiles int) {
	if metrics == nil {
		return
	}

	metrics.SnapshotLoads.WithLabelValues("success").Inc()
	metrics.SnapshotDuration.Observe(duration.Seconds())
	metrics.ReplayedCommits.Add(float64(replayedCommits))
	metrics.ActiveFiles.Set(float64(activeFiles))
}

// RecordSnapshotError records a failed snapshot load under its error code
func RecordSnapshotError(kind string, duration time.Duration) {
	if metrics == nil {
		return
	}

	metrics.SnapshotLoads.WithLabelValues("error").Inc()
	metrics.SnapshotDuration.Observe(duration.Seconds())
	metrics.SnapshotErrors.WithLabelValues(kind).Inc()
}
