package refresh

import (
	"context"
	"testing"
	"time"

	"github.com/krisalay/estate-cache/types"
)

func TestAheadWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fetch := types.FetchFunc(func(context.Context) (any, error) { return nil, nil })
	hook := Ahead{Window: 5 * time.Second}

	cases := []struct {
		name string
		ent  types.CacheEntry
		want bool
	}{
		{"inside window", types.CacheEntry{Fetch: fetch, ExpireAt: now.Add(3 * time.Second)}, true},
		{"outside window", types.CacheEntry{Fetch: fetch, ExpireAt: now.Add(time.Minute)}, false},
		{"already expired", types.CacheEntry{Fetch: fetch, ExpireAt: now}, false},
		{"no fetch", types.CacheEntry{ExpireAt: now.Add(time.Second)}, false},
		{"no expiry", types.CacheEntry{Fetch: fetch}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ent := tc.ent
			if got := hook.OnRead("k", &ent, now); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}

	if (Ahead{}).OnRead("k", &types.CacheEntry{Fetch: fetch, ExpireAt: now.Add(time.Second)}, now) {
		t.Fatal("zero window disables refresh")
	}
}
