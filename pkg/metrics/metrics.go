// Package metrics registers the Prometheus collectors shared by the
// services.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts REST requests by method, route and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bearmemori_http_requests_total",
		Help: "REST requests by method, route and status.",
	}, []string{"method", "route", "status"})

	// HTTPDuration observes REST request latency by route.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bearmemori_http_request_duration_seconds",
		Help:    "REST request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// JobsProcessed counts worker job outcomes by type and status.
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bearmemori_jobs_processed_total",
		Help: "LLM jobs processed by type and terminal status.",
	}, []string{"job_type", "status"})

	// JobRetries counts handler retries by job type.
	JobRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bearmemori_job_retries_total",
		Help: "LLM job handler retries by type.",
	}, []string{"job_type"})

	// NotificationsPublished counts outbound notifications by type.
	NotificationsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bearmemori_notifications_published_total",
		Help: "Notifications published on the outbound stream by type.",
	}, []string{"type"})

	// SchedulerActionDuration observes housekeeping action latency.
	SchedulerActionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bearmemori_scheduler_action_duration_seconds",
		Help:    "Housekeeping action latency by action.",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})
)

// GinMiddleware records request counts and latency per route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(c.Request.Method, route,
			strconv.Itoa(c.Writer.Status())).Inc()
		HTTPDuration.WithLabelValues(c.Request.Method, route).
			Observe(time.Since(start).Seconds())
	}
}
