package prometheus

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusAdapter implements types.Metrics for the cache and records
// gateway request metrics.
type PrometheusAdapter struct {
	appName string

	cacheEvents   *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewPrometheusAdapter registers its collectors with reg. Pass
// prometheus.DefaultRegisterer to expose them on promhttp.Handler().
func NewPrometheusAdapter(reg prometheus.Registerer, appName string) *PrometheusAdapter {
	adapter := &PrometheusAdapter{
		appName: appName,
		cacheEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_events_total",
				Help: "Cache lifecycle events by type",
			},
			[]string{"event", "app_name"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cache_fetch_duration_seconds",
				Help:    "Duration of fetches for cold keys",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result", "app_name"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status", "app_name"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "api_request_duration_seconds",
				Help:    "Duration API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method", "status", "app_name"},
		),
	}

	reg.MustRegister(
		adapter.cacheEvents,
		adapter.fetchDuration,
		adapter.httpRequestsTotal,
		adapter.httpRequestDuration,
	)

	for _, ev := range []string{"hit", "miss", "eviction", "expire", "refresh", "shared"} {
		adapter.cacheEvents.WithLabelValues(ev, appName).Add(0)
	}
	return adapter
}

func (p *PrometheusAdapter) event(name string) {
	p.cacheEvents.WithLabelValues(name, p.appName).Inc()
}

func (p *PrometheusAdapter) Hit()      { p.event("hit") }
func (p *PrometheusAdapter) Miss()     { p.event("miss") }
func (p *PrometheusAdapter) Eviction() { p.event("eviction") }
func (p *PrometheusAdapter) Expire()   { p.event("expire") }
func (p *PrometheusAdapter) Refresh()  { p.event("refresh") }
func (p *PrometheusAdapter) Shared()   { p.event("shared") }

func (p *PrometheusAdapter) Fetch(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.fetchDuration.WithLabelValues(result, p.appName).Observe(d.Seconds())
}

func (p *PrometheusAdapter) IncrementCounter(labels map[string]string) {
	p.httpRequestsTotal.WithLabelValues(
		labels["path"],
		labels["method"],
		labels["status"],
		p.appName,
	).Inc()
}

func (p *PrometheusAdapter) RecordDuration(duration time.Duration, labels map[string]string) {
	p.httpRequestDuration.WithLabelValues(
		labels["path"],
		labels["method"],
		labels["status"],
		p.appName,
	).Observe(duration.Seconds())
}

// RecordMetrics labels by route template, not raw path, to keep cardinality bounded.
func (p *PrometheusAdapter) RecordMetrics(c *gin.Context, start time.Time) {
	path := c.FullPath()
	if path == "" {
		path = "unmatched"
	}
	labels := map[string]string{
		"path":   path,
		"method": c.Request.Method,
		"status": fmt.Sprintf("%d", c.Writer.Status()),
	}

	p.IncrementCounter(labels)
	p.RecordDuration(time.Since(start), labels)
}

// Middleware records every request handled by the router.
func (p *PrometheusAdapter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		p.RecordMetrics(c, start)
	}
}
