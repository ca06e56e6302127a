package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peer_http_requests_total",
			Help: "Total number of HTTP requests processed by the peer service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "peer_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "peer_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"kind"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peer_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"kind", "event"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "peer_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
	whiteboardSyncsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peer_whiteboard_syncs_total",
			Help: "Total number of whiteboard sync calls.",
		},
		[]string{"status"},
	)
	whiteboardOpsMerged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "peer_whiteboard_operations_merged_total",
			Help: "Total number of whiteboard operations accepted into session logs.",
		},
	)
	sessionsSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "peer_sessions_swept_total",
			Help: "Total number of stale sessions closed by the background sweep.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		amqpPublishErrorsTotal,
		whiteboardSyncsTotal,
		whiteboardOpsMerged,
		sessionsSweptTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Inc()
}

func DecWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Dec()
}

func IncWSEvent(kind, event string) {
	wsEventsTotal.WithLabelValues(kind, event).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

func IncWhiteboardSync(status string) {
	whiteboardSyncsTotal.WithLabelValues(status).Inc()
}

func AddWhiteboardOpsMerged(n int) {
	whiteboardOpsMerged.Add(float64(n))
}

func AddSessionsSwept(n int64) {
	sessionsSweptTotal.Add(float64(n))
}
