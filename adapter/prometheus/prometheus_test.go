package prometheus

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/krisalay/estate-cache/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

var _ types.Metrics = (*PrometheusAdapter)(nil)

func TestCacheEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusAdapter(reg, "estate")

	m.Hit()
	m.Hit()
	m.Miss()
	m.Shared()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheEvents.WithLabelValues("hit", "estate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheEvents.WithLabelValues("miss", "estate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheEvents.WithLabelValues("shared", "estate")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.cacheEvents.WithLabelValues("eviction", "estate")))
}

func TestFetchDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusAdapter(reg, "estate")

	m.Fetch(10*time.Millisecond, nil)
	m.Fetch(20*time.Millisecond, errors.New("boom"))
	m.Fetch(30*time.Millisecond, nil)

	assert.Equal(t, 2, testutil.CollectAndCount(m.fetchDuration))
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := NewPrometheusAdapter(reg, "estate")

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/health", "GET", "200", "estate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("unmatched", "GET", "404", "estate")))
}
