package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	cache "github.com/krisalay/estate-cache"
	"github.com/krisalay/estate-cache/api"
	"github.com/krisalay/estate-cache/logger"
	"github.com/krisalay/estate-cache/session"
)

const DefaultTTL = 2 * time.Minute

// Client talks to the backend REST API on behalf of one realm by default.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	sessions session.Store
	cache    api.Cache
	policy   *AuthPolicy
	log      logger.Logger
	realm    session.Realm
	ttl      time.Duration
	now      func() time.Time
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option  { return func(c *Client) { c.http = h } }
func WithSessions(s session.Store) Option   { return func(c *Client) { c.sessions = s } }
func WithCache(ca api.Cache) Option         { return func(c *Client) { c.cache = ca } }
func WithPolicy(p *AuthPolicy) Option       { return func(c *Client) { c.policy = p } }
func WithLogger(l logger.Logger) Option     { return func(c *Client) { c.log = l } }
func WithRealm(r session.Realm) Option      { return func(c *Client) { c.realm = r } }
func WithTTL(ttl time.Duration) Option      { return func(c *Client) { c.ttl = ttl } }
func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

func New(baseURL string, opts ...Option) (*Client, error) {
	const op = "client.New"

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s: base url %q must be absolute", op, baseURL)
	}

	c := &Client{
		baseURL: u,
		realm:   session.User,
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.http == nil {
		c.http = cleanhttp.DefaultPooledClient()
	}
	if c.sessions == nil {
		c.sessions = session.NewMemoryStore()
	}
	if c.cache == nil {
		c.cache = cache.New(16)
	}
	if c.log == nil {
		c.log = logger.Nop()
	}
	return c, nil
}

func (c *Client) BaseURL() string           { return c.baseURL.String() }
func (c *Client) Cache() api.Cache          { return c.cache }
func (c *Client) Sessions() session.Store   { return c.sessions }
func (c *Client) Policy() *AuthPolicy       { return c.policy }
func (c *Client) Realm() session.Realm      { return c.realm }
func (c *Client) DefaultTTL() time.Duration { return c.ttl }

type Request struct {
	Method string
	Path   string
	Query  url.Values

	// Body is sent as-is when it is an io.Reader, JSON-encoded otherwise.
	Body        any
	ContentType string
	Header      http.Header

	// Realm defaults to the client's realm.
	Realm session.Realm

	// Token overrides the realm's stored token.
	Token string

	// NoStoredToken sends Token alone, even when it is empty. Use it when
	// forwarding for a caller whose identity is not this client's session.
	NoStoredToken bool
}

type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the body into out. An empty body leaves out untouched.
func (r *Response) Decode(out any) error {
	if out == nil || len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, out)
}

// Do sends one request. Non-2xx responses and {success:false} envelopes come
// back as *Error after the auth policy has seen them.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	realm := req.Realm
	if realm == "" {
		realm = c.realm
	}

	// Only a failure of the realm's own session may clear it.
	own := req.Token == "" && !req.NoStoredToken

	token := req.Token
	if own {
		token, _ = c.sessions.Token(realm)
	}
	if token != "" && session.Expired(token, c.now()) {
		return nil, c.fail(ctx, realm, own, &Error{
			Kind:    KindNoToken,
			Message: KindNoToken.Message(),
		})
	}

	httpReq, err := c.newRequest(ctx, req, token)
	if err != nil {
		return nil, err
	}

	start := c.now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, c.fail(ctx, realm, own, &Error{
			Kind:    KindNetwork,
			Message: KindNetwork.Message(),
			Err:     err,
		})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(ctx, realm, own, &Error{
			Kind:    KindNetwork,
			Status:  resp.StatusCode,
			Message: KindNetwork.Message(),
			Err:     err,
		})
	}

	c.log.DebugContext(ctx, "Backend call", map[string]interface{}{
		"method":   httpReq.Method,
		"path":     httpReq.URL.Path,
		"status":   resp.StatusCode,
		"realm":    realm.String(),
		"duration": c.now().Sub(start).String(),
	})

	if e := classify(resp.StatusCode, body); e != nil {
		return nil, c.fail(ctx, realm, own, e)
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   body,
	}, nil
}

func (c *Client) newRequest(ctx context.Context, req Request, token string) (*http.Request, error) {
	const op = "client.newRequest"

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	u := c.baseURL.JoinPath(strings.TrimPrefix(req.Path, "/"))
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var (
		body        io.Reader
		contentType = req.ContentType
	)
	switch b := req.Body.(type) {
	case nil:
	case io.Reader:
		body = b
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		body = bytes.NewReader(data)
		if contentType == "" {
			contentType = "application/json"
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return httpReq, nil
}

// fail runs the auth policy when the request used the realm's own session.
// A borrowed token failing says nothing about that session.
func (c *Client) fail(ctx context.Context, realm session.Realm, own bool, e *Error) error {
	if own && c.policy != nil {
		c.policy.Handle(ctx, realm, e)
	}
	return e
}

func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.call(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	return c.call(ctx, Request{Method: http.MethodPost, Path: path, Body: in}, out)
}

func (c *Client) PutJSON(ctx context.Context, path string, in, out any) error {
	return c.call(ctx, Request{Method: http.MethodPut, Path: path, Body: in}, out)
}

func (c *Client) PatchJSON(ctx context.Context, path string, in, out any) error {
	return c.call(ctx, Request{Method: http.MethodPatch, Path: path, Body: in}, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.call(ctx, Request{Method: http.MethodDelete, Path: path}, out)
}

func (c *Client) call(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if err := resp.Decode(out); err != nil {
		return fmt.Errorf("client.decode %s %s: %w", req.Method, req.Path, err)
	}
	return nil
}

// Login stores token for realm and drops everything cached under the
// previous identity.
func (c *Client) Login(realm session.Realm, token string) error {
	if err := c.sessions.SetToken(realm, token); err != nil {
		return err
	}
	c.cache.Clear()
	return nil
}

// Logout is the session teardown: the realm's token and the cache go.
func (c *Client) Logout(realm session.Realm) error {
	err := c.sessions.Clear(realm)
	c.cache.Clear()
	return err
}
