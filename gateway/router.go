package gateway

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	promadapter "github.com/krisalay/estate-cache/adapter/prometheus"
	"github.com/krisalay/estate-cache/client"
	"github.com/krisalay/estate-cache/config"
	"github.com/krisalay/estate-cache/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Router struct {
	*gin.Engine
}

type Deps struct {
	Log      logger.Logger
	Upstream *client.Client

	// Metrics records request metrics when set.
	Metrics *promadapter.PrometheusAdapter

	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// TTL of memoized GETs. Defaults to the upstream client's TTL.
	TTL time.Duration
}

func NewRouter(config *config.HTTP, deps Deps) (*Router, error) {
	if deps.Upstream == nil {
		return nil, errors.New("gateway.NewRouter: upstream client is required")
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if deps.TTL == 0 {
		deps.TTL = deps.Upstream.DefaultTTL()
	}

	if config.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	// CORS
	ginConfig := cors.DefaultConfig()
	if config.AllowedOrigins == "" || config.AllowedOrigins == "*" {
		ginConfig.AllowAllOrigins = true
	} else {
		ginConfig.AllowOrigins = strings.Split(config.AllowedOrigins, ",")
	}
	ginConfig.AddAllowHeaders("Authorization", realmHeader, requestIDHeader)
	ginConfig.AddExposeHeaders(requestIDHeader)

	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), cors.New(ginConfig))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
	}
	router.Use(RequestLogger(deps.Log))

	cacheHandler := NewCacheHandler(deps.Upstream.Cache())
	proxy := NewProxyHandler(deps.Upstream, deps.TTL, deps.Log)

	router.GET("/health", cacheHandler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))

	cacheAdmin := router.Group("/cache")
	{
		cacheAdmin.DELETE("", cacheHandler.Clear)
		cacheAdmin.DELETE("/:key", cacheHandler.Remove)
	}

	router.Any("/api/*path", proxy.Forward)

	return &Router{
		Engine: router,
	}, nil
}
