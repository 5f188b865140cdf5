package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/krisalay/estate-cache/types"
	"github.com/redis/go-redis/v9"
)

const scanBatch = 256

// RedisAdapter is the second-level store behind the in-memory cache.
// Values are stored as JSON and loaded back as json.RawMessage.
type RedisAdapter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisAdapter(client redis.UniversalClient, prefix string) *RedisAdapter {
	return &RedisAdapter{
		client: client,
		prefix: prefix,
	}
}

// Connect opens a client and pings it.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	const op = "redis.Connect"

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return client, nil
}

func (r *RedisAdapter) Load(ctx context.Context, key string) (any, error) {
	const op = "redis.Load"

	result, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return json.RawMessage(result), nil
}

func (r *RedisAdapter) Put(ctx context.Context, key string, value any, ttl time.Duration) error {
	const op = "redis.Put"

	data, err := encode(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *RedisAdapter) Delete(ctx context.Context, key string) error {
	const op = "redis.Delete"

	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeletePrefix deletes every key starting with prefix.
func (r *RedisAdapter) DeletePrefix(ctx context.Context, prefix string) error {
	if err := r.deleteMatching(ctx, globEscaper.Replace(r.prefix+prefix)+"*"); err != nil {
		return fmt.Errorf("redis.DeletePrefix: %w", err)
	}
	return nil
}

// Clear deletes every key under the adapter's prefix. With an empty prefix
// it flushes the selected database.
func (r *RedisAdapter) Clear(ctx context.Context) error {
	const op = "redis.Clear"

	if r.prefix == "" {
		if err := r.client.FlushDB(ctx).Err(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}

	if err := r.deleteMatching(ctx, globEscaper.Replace(r.prefix)+"*"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// globEscaper quotes the characters SCAN MATCH treats as wildcards.
var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

func (r *RedisAdapter) deleteMatching(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// raw bytes go through untouched so cached response bodies are not
// re-encoded as base64 strings.
func encode(value any) ([]byte, error) {
	switch v := value.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		if json.Valid(v) {
			return v, nil
		}
	}
	return json.Marshal(value)
}

var _ types.Store = (*RedisAdapter)(nil)
