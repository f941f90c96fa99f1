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
			Name: "messenger_http_requests_total",
			Help: "Total number of HTTP requests processed by the messenger service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messenger_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "messenger_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_ws_events_total",
			Help: "Total number of websocket lifecycle events.",
		},
		[]string{"event"},
	)
	sessionEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_session_events_total",
			Help: "Total number of session protocol events handled.",
		},
		[]string{"event"},
	)
	messagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_messages_sent_total",
			Help: "Total number of messages persisted, by delivery outcome at send time.",
		},
		[]string{"delivered"},
	)
	messagesDeliveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messenger_messages_delivered_total",
			Help: "Total number of messages flipped to delivered by the connect sweep.",
		},
	)
	incognitoSweepRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messenger_incognito_sweep_runs_total",
			Help: "Total number of incognito sweep passes.",
		},
	)
	incognitoSweepDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messenger_incognito_sweep_deleted_total",
			Help: "Total number of messages deleted by incognito sweeps.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messenger_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		sessionEventsTotal,
		messagesSentTotal,
		messagesDeliveredTotal,
		incognitoSweepRunsTotal,
		incognitoSweepDeletedTotal,
		amqpPublishErrorsTotal,
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

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncSessionEvent(event string) {
	sessionEventsTotal.WithLabelValues(event).Inc()
}

func IncMessageSent(delivered bool) {
	messagesSentTotal.WithLabelValues(strconv.FormatBool(delivered)).Inc()
}

func IncMessageDelivered() {
	messagesDeliveredTotal.Inc()
}

func IncSweepRun() {
	incognitoSweepRunsTotal.Inc()
}

func AddSweepDeleted(count int64) {
	incognitoSweepDeletedTotal.Add(float64(count))
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
