package app

import (
	"context"
	"fmt"
	"net/http/cookiejar"

	"github.com/hashicorp/go-cleanhttp"
	cache "github.com/krisalay/estate-cache"
	promadapter "github.com/krisalay/estate-cache/adapter/prometheus"
	redisadapter "github.com/krisalay/estate-cache/adapter/redis"
	"github.com/krisalay/estate-cache/client"
	"github.com/krisalay/estate-cache/config"
	"github.com/krisalay/estate-cache/engine"
	"github.com/krisalay/estate-cache/eviction"
	"github.com/krisalay/estate-cache/expiration"
	"github.com/krisalay/estate-cache/logger"
	"github.com/krisalay/estate-cache/refresh"
	"github.com/krisalay/estate-cache/session"
	"github.com/krisalay/estate-cache/types"
	"github.com/krisalay/estate-cache/writepolicy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// App holds every long-lived component built from the configuration.
type App struct {
	Config   *config.Container
	Log      logger.Logger
	Cache    *cache.ShardedCache
	Client   *client.Client
	Sessions session.Store

	// Gateway forwards callers of the HTTP gateway. It has no cookie jar
	// and no stored sessions: callers are never sent as this process.
	Gateway *client.Client

	Metrics  *promadapter.PrometheusAdapter

	redis *redis.Client
}

func New(
	ctx context.Context,
	cfg *config.Container,
	log logger.Logger,
	reg prometheus.Registerer,
	redirector client.Redirector,
) (*App, error) {
	const op = "app.New"

	evictionType, err := eviction.ParsePolicyType(cfg.Cache.Eviction)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a := &App{
		Config:  cfg,
		Log:     log,
		Metrics: promadapter.NewPrometheusAdapter(reg, cfg.App.Name),
	}

	var (
		store  types.Store
		policy writepolicy.WritePolicy
	)
	if cfg.Redis.Enabled {
		rdb, err := redisadapter.Connect(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.redis = rdb
		store = redisadapter.NewRedisAdapter(rdb, cfg.Redis.Prefix)
		policy = newWritePolicy(cfg.Redis, store, log)

		log.Info("Connected to Redis", map[string]interface{}{
			"addr":       cfg.Redis.Address,
			"write_mode": cfg.Redis.WriteMode,
		})
	}

	var hook refresh.Hook
	if cfg.Cache.RefreshAhead > 0 {
		hook = refresh.Ahead{Window: cfg.Cache.RefreshAhead}
	}

	eng := engine.NewCacheEngine(
		expiration.New(expiration.Mode(cfg.Cache.Expiration), cfg.Cache.TTL),
		hook,
		store,
		policy,
		a.Metrics,
	)
	eng.FetchTimeout = cfg.Cache.FetchTimeout

	a.Cache = cache.NewShardedCache(cfg.Cache.Shards, cfg.Cache.Capacity, evictionType, eng)

	// Tokens live in the session file and as cookies in the jar the HTTP
	// client sends with every request.
	jar, err := cookiejar.New(nil)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	jarStore, err := session.NewJarStore(jar, cfg.API.BaseURL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	fileStore := session.NewFileStore(cfg.Session.File)
	for _, realm := range []session.Realm{session.User, session.Admin} {
		if tok, ok := fileStore.Token(realm); ok {
			_ = jarStore.SetToken(realm, tok)
		}
	}
	a.Sessions = session.Multi{fileStore, jarStore}

	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Jar = jar
	httpClient.Timeout = cfg.API.Timeout

	routes := client.LoginRoutes{User: cfg.Routes.UserLogin, Admin: cfg.Routes.AdminLogin}
	authPolicy := client.NewAuthPolicy(a.Sessions, routes, redirector, log)

	a.Client, err = client.New(cfg.API.BaseURL,
		client.WithHTTPClient(httpClient),
		client.WithSessions(a.Sessions),
		client.WithCache(a.Cache),
		client.WithPolicy(authPolicy),
		client.WithLogger(log),
		client.WithTTL(cfg.Cache.TTL),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	gatewayHTTP := cleanhttp.DefaultPooledClient()
	gatewayHTTP.Timeout = cfg.API.Timeout

	a.Gateway, err = client.New(cfg.API.BaseURL,
		client.WithHTTPClient(gatewayHTTP),
		client.WithSessions(session.NewMemoryStore()),
		client.WithCache(a.Cache),
		client.WithPolicy(client.NewAuthPolicy(nil, routes, nil, log)),
		client.WithLogger(log),
		client.WithTTL(cfg.Cache.TTL),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return a, nil
}

func newWritePolicy(cfg *config.Redis, store types.Store, log logger.Logger) writepolicy.WritePolicy {
	onError := func(op, key string, err error) {
		log.Error("Failed to mirror cache write", map[string]interface{}{
			"op":    op,
			"key":   key,
			"error": err.Error(),
		})
	}

	if writepolicy.Mode(cfg.WriteMode) == writepolicy.ThroughMode {
		return writepolicy.NewWriteThroughPolicy(store, onError)
	}
	return writepolicy.NewWriteBackPolicy(store, cfg.Buffer, onError)
}

// Close flushes pending mirror writes before dropping the Redis connection.
func (a *App) Close() {
	if a.Cache != nil {
		a.Cache.Close()
	}
	a.closeRedis()
}

func (a *App) closeRedis() {
	if a.redis == nil {
		return
	}
	if err := a.redis.Close(); err != nil {
		a.Log.Warn("Failed to close Redis", map[string]interface{}{
			"error": err.Error(),
		})
	}
	a.redis = nil
}
