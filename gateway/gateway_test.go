package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	cache "github.com/krisalay/estate-cache"
	promadapter "github.com/krisalay/estate-cache/adapter/prometheus"
	"github.com/krisalay/estate-cache/client"
	"github.com/krisalay/estate-cache/config"
	"github.com/krisalay/estate-cache/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	gets  atomic.Int32
	posts atomic.Int32
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/api/profile" && r.Header.Get("Authorization") != "Bearer good":
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"success":false,"message":"Invalid token"}`)
	case r.URL.Path == "/api/missing":
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"success":false,"message":"Land not found"}`)
	case r.Method == http.MethodGet:
		n := b.gets.Add(1)
		body, _ := json.Marshal(map[string]any{
			"success": true,
			"n":       n,
			"path":    r.URL.Path,
			"query":   r.URL.RawQuery,
		})
		_, _ = w.Write(body)
	default:
		b.posts.Add(1)
		data, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(data)
	}
}

type fixture struct {
	router   *Router
	backend  *backend
	cache    *cache.ShardedCache
	metrics  *promadapter.PrometheusAdapter
	sessions *session.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	b := &backend{}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	c := cache.New(4)
	sessions := session.NewMemoryStore()
	policy := client.NewAuthPolicy(sessions, client.LoginRoutes{User: "/login", Admin: "/admin/login"}, nil, nil)
	upstream, err := client.New(srv.URL+"/api",
		client.WithCache(c),
		client.WithSessions(sessions),
		client.WithPolicy(policy),
	)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := promadapter.NewPrometheusAdapter(reg, "estate")

	router, err := NewRouter(&config.HTTP{Port: "0", AllowedOrigins: "*"}, Deps{
		Upstream: upstream,
		Metrics:  metrics,
		Gatherer: reg,
		TTL:      time.Minute,
	})
	require.NoError(t, err)

	return &fixture{router: router, backend: b, cache: c, metrics: metrics, sessions: sessions}
}

func (f *fixture) do(method, path, auth, body string, header ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestGetIsMemoizedPerCaller(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/lands/42?lang=en", "Bearer alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/api/lands/42", decode(t, w)["path"])
	assert.Equal(t, "lang=en", decode(t, w)["query"])

	w = f.do(http.MethodGet, "/api/lands/42?lang=en", "Bearer alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["n"])
	assert.Equal(t, int32(1), f.backend.gets.Load())

	// another identity does not share alice's entry
	w = f.do(http.MethodGet, "/api/lands/42?lang=en", "Bearer bob", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(2), f.backend.gets.Load())

	// nor does the same token in another realm
	w = f.do(http.MethodGet, "/api/lands/42?lang=en", "Bearer alice", "", realmHeader, "admin")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(3), f.backend.gets.Load())
}

func TestCallerNeverBorrowsStoredSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sessions.SetToken(session.User, "good"))

	// an anonymous caller is not the session the upstream client holds
	w := f.do(http.MethodGet, "/api/profile", "", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "/login", decode(t, w)["redirect"])

	// a caller's bad token leaves that session alone
	w = f.do(http.MethodGet, "/api/profile", "Bearer bad", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	tok, ok := f.sessions.Token(session.User)
	require.True(t, ok)
	assert.Equal(t, "good", tok)

	w = f.do(http.MethodGet, "/api/profile", "Bearer good", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMutationInvalidatesResource(t *testing.T) {
	f := newFixture(t)

	f.do(http.MethodGet, "/api/lands?page=1", "", "")
	f.do(http.MethodGet, "/api/lands/42", "", "")
	f.do(http.MethodGet, "/api/houses/7", "", "")
	require.Equal(t, 3, f.cache.Len())

	w := f.do(http.MethodPost, "/api/lands", "", `{"title":"Hillside plot"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"title":"Hillside plot"}`, w.Body.String())
	assert.Equal(t, int32(1), f.backend.posts.Load())

	assert.Equal(t, 1, f.cache.Len(), "only the houses entry survives")

	f.do(http.MethodGet, "/api/lands/42", "", "")
	assert.Equal(t, int32(4), f.backend.gets.Load())
}

func TestMutationKeepsSimilarlyNamedResource(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	f.do(http.MethodGet, "/api/land/1", "", "")
	f.do(http.MethodGet, "/api/land-details/1", "", "")
	require.NoError(t, f.cache.Set(ctx, "land-notes", "kept", 0))
	require.Equal(t, 3, f.cache.Len())

	w := f.do(http.MethodPut, "/api/land/1", "", `{"title":"Renamed"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	assert.Equal(t, 2, f.cache.Len())
	_, ok := f.cache.Get("land-notes")
	assert.True(t, ok, "keys outside the gateway namespace are untouched")

	f.do(http.MethodGet, "/api/land-details/1", "", "")
	assert.Equal(t, int32(2), f.backend.gets.Load(), "land-details is still cached")
}

func TestAuthFailureReturnsRedirect(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/profile", "Bearer stale", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Invalid token", body["message"])
	assert.Equal(t, "/login", body["redirect"])

	w = f.do(http.MethodGet, "/api/profile", "Bearer stale", "", realmHeader, "admin")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "/admin/login", decode(t, w)["redirect"])

	assert.Equal(t, 0, f.cache.Len())
}

func TestUpstreamFailurePassesStatus(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/missing", "", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Land not found", decode(t, w)["message"])
	assert.Equal(t, 0, f.cache.Len())
}

func TestUnknownRealm(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/lands", "", "", realmHeader, "root")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCacheAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	require.NoError(t, f.cache.Set(ctx, "lands-42", "x", 0))
	require.NoError(t, f.cache.Set(ctx, "lands-43", "y", 0))
	require.NoError(t, f.cache.Set(ctx, "houses-1", "z", 0))

	w := f.do(http.MethodDelete, "/cache/lands-42", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	_, ok := f.cache.Get("lands-42")
	assert.False(t, ok)

	w = f.do(http.MethodDelete, "/cache/lands-42", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodDelete, "/cache?prefix=lands-", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["data"].(map[string]any)["removed"])

	w = f.do(http.MethodDelete, "/cache", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, f.cache.Len())
}

func TestHealthAndRequestID(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
	assert.Equal(t, "ok", decode(t, w)["data"].(map[string]any)["status"])

	w = f.do(http.MethodGet, "/health", "", "", requestIDHeader, "req-1")
	assert.Equal(t, "req-1", w.Header().Get(requestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	f.do(http.MethodGet, "/health", "", "")
	w := f.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_requests_total{app_name="estate",method="GET",path="/health",status="200"} 1`)
}

func TestCacheKey(t *testing.T) {
	a := cacheKey("/lands/42", "lang=en", session.User, "Bearer alice")
	b := cacheKey("/lands/42", "lang=en", session.User, "Bearer bob")
	admin := cacheKey("/lands/42", "lang=en", session.Admin, "Bearer alice")

	assert.True(t, strings.HasPrefix(a, "lands-GET /lands/42?lang=en#user:"))
	assert.True(t, strings.HasPrefix(a, resourcePrefix("/lands/42")))
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, admin)
	assert.NotContains(t, a, "alice")
	assert.False(t, strings.HasPrefix(cacheKey("/land-details/1", "", session.User, ""), resourcePrefix("/land")))
	assert.Equal(t, "lands", resourceOf("/lands"))
	assert.Equal(t, "", resourceOf("/"))
	assert.Equal(t, "tok", bearer("Bearer tok"))
	assert.Equal(t, "", bearer("Basic tok"))
}
