package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"
	cache "github.com/krisalay/estate-cache"
	"github.com/krisalay/estate-cache/api"
	"github.com/krisalay/estate-cache/client"
	"github.com/krisalay/estate-cache/logger"
	"github.com/krisalay/estate-cache/session"
)

const realmHeader = "X-Realm"

// upstreamResponse is what the gateway memoizes for a GET.
type upstreamResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// ProxyHandler forwards /api/* to the backend as the caller: only the
// caller's own bearer token is sent, never a session the upstream client
// holds. GETs are memoized per realm and token; mutations invalidate the
// resource they touched.
type ProxyHandler struct {
	upstream *client.Client
	cache    api.Cache
	ttl      time.Duration
	log      logger.Logger
}

func NewProxyHandler(upstream *client.Client, ttl time.Duration, log logger.Logger) *ProxyHandler {
	return &ProxyHandler{
		upstream: upstream,
		cache:    upstream.Cache(),
		ttl:      ttl,
		log:      log,
	}
}

func (h *ProxyHandler) Forward(c *gin.Context) {
	path := c.Param("path")
	realm, err := session.ParseRealm(strings.ToLower(c.GetHeader(realmHeader)))
	if err != nil {
		newErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	auth := c.GetHeader("Authorization")

	req := client.Request{
		Method: c.Request.Method,
		Path:   path,
		Query:  c.Request.URL.Query(),
		Realm:  realm,
		Token:  bearer(auth),

		NoStoredToken: true,
	}

	if c.Request.Method == http.MethodGet {
		key := cacheKey(path, c.Request.URL.RawQuery, realm, auth)
		v, err := h.cache.GetOrFetch(c.Request.Context(), key, h.fetch(req), h.ttl)
		if err != nil {
			h.fail(c, realm, err)
			return
		}
		resp, err := decodeUpstream(v)
		if err != nil {
			h.fail(c, realm, err)
			return
		}
		c.Data(resp.Status, resp.ContentType, resp.Body)
		return
	}

	if c.Request.ContentLength != 0 {
		req.Body = c.Request.Body
		req.ContentType = c.GetHeader("Content-Type")
	}
	resp, err := h.upstream.Do(c.Request.Context(), req)

	removed := h.cache.RemovePrefix(resourcePrefix(path))
	h.log.DebugContext(c.Request.Context(), "Invalidated resource", map[string]interface{}{
		"resource": resourceOf(path),
		"removed":  removed,
	})

	if err != nil {
		h.fail(c, realm, err)
		return
	}
	c.Data(resp.Status, resp.Header.Get("Content-Type"), resp.Body)
}

func (h *ProxyHandler) fetch(req client.Request) func(ctx context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		resp, err := h.upstream.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		return &upstreamResponse{
			Status:      resp.Status,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        resp.Body,
		}, nil
	}
}

func (h *ProxyHandler) fail(c *gin.Context, realm session.Realm, err error) {
	_ = c.Error(err)

	var e *client.Error
	switch {
	case errors.As(err, &e) && e.Kind.Auth():
		redirect := ""
		if p := h.upstream.Policy(); p != nil {
			redirect = p.LoginRoute(realm)
		}
		newRedirectResponse(c, http.StatusUnauthorized, e.Message, redirect)
	case errors.As(err, &e) && e.Kind == client.KindNetwork:
		newErrorResponse(c, http.StatusBadGateway, e.Message)
	case errors.As(err, &e) && e.Status >= 400:
		newErrorResponse(c, e.Status, e.Message)
	case errors.As(err, &e):
		newErrorResponse(c, http.StatusBadGateway, e.Message)
	case errors.Is(err, cache.ErrClosed):
		newErrorResponse(c, http.StatusServiceUnavailable, "cache is shutting down")
	case errors.Is(err, context.DeadlineExceeded):
		newErrorResponse(c, http.StatusGatewayTimeout, "upstream timed out")
	default:
		newErrorResponse(c, http.StatusInternalServerError, client.MessageOf(err))
	}
}

// cacheKey starts with resourcePrefix so mutations can drop it. The realm
// and a fingerprint of the Authorization header end the key: identities
// never share entries and the token itself never sits in a key.
func cacheKey(path, rawQuery string, realm session.Realm, auth string) string {
	var b strings.Builder
	b.WriteString(resourcePrefix(path))
	b.WriteString(path)
	if rawQuery != "" {
		b.WriteByte('?')
		b.WriteString(rawQuery)
	}
	b.WriteByte('#')
	b.WriteString(realm.String())
	b.WriteByte(':')
	b.WriteString(strconv.FormatUint(xxhash.Sum64String(auth), 16))
	return b.String()
}

// resourcePrefix is shared by every gateway key of path's resource and by
// no key of another resource ("land" never matches "land-details").
func resourcePrefix(path string) string {
	return resourceOf(path) + "-GET "
}

// resourceOf returns the first path segment.
func resourceOf(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}

func bearer(auth string) string {
	fields := strings.Fields(auth)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "bearer") {
		return ""
	}
	return fields[1]
}

// values loaded from the second-level store arrive as raw JSON.
func decodeUpstream(v any) (*upstreamResponse, error) {
	switch r := v.(type) {
	case *upstreamResponse:
		return r, nil
	case json.RawMessage:
		var out upstreamResponse
		if err := json.Unmarshal(r, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}
	return nil, errors.New("gateway: unexpected cached value")
}
