package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes pipeline-level instruments.
type Metrics struct {
	WebhooksReceived *prometheus.CounterVec
	WebhooksRejected *prometheus.CounterVec
	WebhooksDup      *prometheus.CounterVec
	RateLimitDenied  prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers the application instruments on the given registerer.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		WebhooksReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_webhooks_received_total",
			Help: "Webhook notifications accepted into the pipeline.",
		}, []string{"provider", "event_type"}),
		WebhooksRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_webhooks_rejected_total",
			Help: "Webhook notifications rejected before dispatch.",
		}, []string{"provider", "reason"}),
		WebhooksDup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_webhooks_duplicate_total",
			Help: "Webhook notifications short-circuited by the idempotency ledger.",
		}, []string{"provider"}),
		RateLimitDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payments_rate_limit_denied_total",
			Help: "Requests denied by the admission limiter.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payments_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	collectors := []prometheus.Collector{
		m.WebhooksReceived,
		m.WebhooksRejected,
		m.WebhooksDup,
		m.RateLimitDenied,
		m.httpRequests,
		m.httpDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
