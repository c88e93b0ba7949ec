package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedRoute labels requests that hit no registered route, so scanners
// probing random paths cannot create new series.
const unmatchedRoute = "unmatched"

// Chat and diary requests wait on the model, so latency buckets reach well
// past the usual HTTP range.
var latencyBuckets = []float64{.01, .05, .1, .25, .5, 1, 2, 4, 8, 15, 30}

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emogotchi",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	httpLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "emogotchi",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   latencyBuckets,
	}, []string{"method", "route"})

	httpInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "emogotchi",
		Subsystem: "http",
		Name:      "requests_inflight",
		Help:      "Requests currently being served.",
	})

	httpResponseBytes = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "emogotchi",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "Response body size by route.",
		Buckets:   prometheus.ExponentialBuckets(128, 4, 8), // 128B..2MiB
	}, []string{"method", "route"})
)

func init() {
	prometheus.MustRegister(httpRequests, httpLatency, httpInflight, httpResponseBytes)
}

// Metrics records Prometheus series per request, labelled by the registered
// route pattern rather than the raw URL. Routes in skip (scrape and probe
// endpoints) are not recorded.
func Metrics(skip ...string) gin.HandlerFunc {
	skipped := pathSet(skip)
	return func(c *gin.Context) {
		if _, ok := skipped[c.FullPath()]; ok {
			c.Next()
			return
		}

		httpInflight.Inc()
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)
		httpInflight.Dec()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
		if n := c.Writer.Size(); n >= 0 {
			httpResponseBytes.WithLabelValues(method, route).Observe(float64(n))
		}
	}
}
