package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stopsurvey"

var (
	initOnce sync.Once

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_total",
		Help:      "Survey submissions by variant and outcome stage.",
	}, []string{"variant", "outcome"})

	mediaUploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "media_uploads_total",
		Help:      "Media uploads by backend and result.",
	}, []string{"backend", "result"})

	ledgerAppends = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_appends_total",
		Help:      "Ledger row appends by backend and result.",
	}, []string{"backend", "result"})

	storeRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_retries_total",
		Help:      "Object store calls retried after a transient failure or stale version.",
	})
)

// InitMetrics registers collectors with the default registry. Safe to call repeatedly.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpLatency, submissions, mediaUploads, ledgerAppends, storeRetries)
	})
}

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpLatency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// ObserveSubmission counts a finished submission. outcome is "done" or the failed stage.
func ObserveSubmission(variant, outcome string) {
	submissions.WithLabelValues(variant, outcome).Inc()
}

// ObserveUpload counts one media upload attempt sequence.
func ObserveUpload(backend string, err error) {
	mediaUploads.WithLabelValues(backend, result(err)).Inc()
}

// ObserveAppend counts one ledger append.
func ObserveAppend(backend string, err error) {
	ledgerAppends.WithLabelValues(backend, result(err)).Inc()
}

// ObserveRetry counts one store retry.
func ObserveRetry() {
	storeRetries.Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
