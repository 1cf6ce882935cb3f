package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civicsync_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "civicsync_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	issueOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civicsync_issue_operations_total",
		Help: "Issue store operations by operation and result",
	}, []string{"operation", "result"})

	sessionOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civicsync_session_operations_total",
		Help: "Login, register and logout attempts by result",
	}, []string{"operation", "result"})

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "civicsync_issue_rate_limited_total",
		Help: "Issue reports rejected by the daily limit",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveIssueOperation counts a store operation with result "ok" or the
// error kind that failed it.
func ObserveIssueOperation(operation, result string) {
	issueOperations.WithLabelValues(operation, result).Inc()
}

func ObserveSessionOperation(operation, result string) {
	sessionOperations.WithLabelValues(operation, result).Inc()
}

func IncRateLimited() {
	rateLimited.Inc()
}

// GinMiddleware instruments requests, labelled by route template so ids do
// not explode cardinality.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		ObserveHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
