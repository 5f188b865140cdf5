package redis

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/krisalay/estate-cache/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	raw := json.RawMessage(`{"id":42}`)

	got, err := encode(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"id":42}`, string(got))

	got, err = encode([]byte(`[1,2]`))
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(got))

	got, err = encode(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(got))

	_, err = encode(make(chan int))
	assert.Error(t, err)
}

func TestGlobEscaper(t *testing.T) {
	assert.Equal(t, `estate:lands\*-GET /x\?a=\[1\]`, globEscaper.Replace("estate:lands*-GET /x?a=[1]"))
	assert.Equal(t, `a\\b`, globEscaper.Replace(`a\b`))
}

// TestRedisAdapter runs against a real server when REDIS_TEST_ADDRESS is set.
func TestRedisAdapter(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDRESS")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDRESS not set")
	}

	ctx := context.Background()
	client, err := Connect(ctx, addr, "", 0)
	require.NoError(t, err)
	defer client.Close()

	store := NewRedisAdapter(client, "estate-test:")
	require.NoError(t, store.Clear(ctx))

	require.NoError(t, store.Put(ctx, "land-details-42", map[string]any{"id": 42}, time.Minute))

	v, err := store.Load(ctx, "land-details-42")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":42}`, string(v.(json.RawMessage)))

	require.NoError(t, store.Delete(ctx, "land-details-42"))
	_, err = store.Load(ctx, "land-details-42")
	assert.ErrorIs(t, err, types.ErrNotFound)

	require.NoError(t, store.Put(ctx, "lands-GET /lands?p=1", 1, 0))
	require.NoError(t, store.Put(ctx, "lands*", 2, 0))
	require.NoError(t, store.Put(ctx, "land-details-1", 3, 0))
	require.NoError(t, store.DeletePrefix(ctx, "lands-"))
	_, err = store.Load(ctx, "lands-GET /lands?p=1")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = store.Load(ctx, "lands*")
	assert.NoError(t, err)
	_, err = store.Load(ctx, "land-details-1")
	assert.NoError(t, err)

	require.NoError(t, store.Put(ctx, "a", 1, 0))
	require.NoError(t, store.Put(ctx, "b", 2, 0))
	require.NoError(t, store.Clear(ctx))
	_, err = store.Load(ctx, "a")
	assert.ErrorIs(t, err, types.ErrNotFound)
}
