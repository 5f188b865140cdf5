package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Cached memoizes a GET under key. The raw JSON is cached so each caller
// decodes its own copy and never shares mutable values.
func (c *Client) Cached(ctx context.Context, key string, ttl time.Duration, path string, query url.Values, out any) error {
	v, err := c.cache.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		resp, err := c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
		if err != nil {
			return nil, err
		}
		return json.RawMessage(resp.Body), nil
	}, ttl)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}

	raw, err := rawJSON(v)
	if err != nil {
		return fmt.Errorf("client.Cached %s: %w", key, err)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// values may come back from the second-level store in another shape.
func rawJSON(v any) ([]byte, error) {
	switch r := v.(type) {
	case json.RawMessage:
		return r, nil
	case []byte:
		return r, nil
	case string:
		return []byte(r), nil
	}
	return json.Marshal(v)
}

/*
Resource is a REST collection under /<name>. Reads are memoized under
"<name>-list-<query>" and "<name>-<id>". Every mutation drops all
"<name>-" entries, so a caller never reads its own stale data back.
*/
type Resource struct {
	c    *Client
	name string
	path string
	ttl  time.Duration
}

func (c *Client) Resource(name string) *Resource {
	return &Resource{
		c:    c,
		name: name,
		path: "/" + name,
		ttl:  c.ttl,
	}
}

// WithPath serves the resource from a different path than /<name>.
func (r *Resource) WithPath(path string) *Resource {
	cp := *r
	cp.path = path
	return &cp
}

func (r *Resource) WithTTL(ttl time.Duration) *Resource {
	cp := *r
	cp.ttl = ttl
	return &cp
}

func (r *Resource) Name() string { return r.name }

func (r *Resource) ListKey(query url.Values) string {
	return r.name + "-list-" + query.Encode()
}

func (r *Resource) ItemKey(id string) string {
	return r.name + "-" + id
}

func (r *Resource) List(ctx context.Context, query url.Values, out any) error {
	return r.c.Cached(ctx, r.ListKey(query), r.ttl, r.path, query, out)
}

func (r *Resource) Get(ctx context.Context, id string, out any) error {
	return r.c.Cached(ctx, r.ItemKey(id), r.ttl, r.itemPath(id), nil, out)
}

func (r *Resource) Create(ctx context.Context, in, out any) error {
	defer r.Invalidate()
	return r.c.PostJSON(ctx, r.path, in, out)
}

func (r *Resource) Update(ctx context.Context, id string, in, out any) error {
	defer r.Invalidate()
	return r.c.PutJSON(ctx, r.itemPath(id), in, out)
}

func (r *Resource) Delete(ctx context.Context, id string, out any) error {
	defer r.Invalidate()
	return r.c.Delete(ctx, r.itemPath(id), out)
}

// Invalidate drops every cached read of the resource and returns how many.
func (r *Resource) Invalidate() int {
	return r.c.cache.RemovePrefix(r.name + "-")
}

func (r *Resource) itemPath(id string) string {
	return r.path + "/" + url.PathEscape(id)
}
