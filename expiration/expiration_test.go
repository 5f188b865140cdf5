package expiration

import (
	"testing"
	"time"

	"github.com/krisalay/estate-cache/types"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestNewPicksStrategy(t *testing.T) {
	if _, ok := New(AccessMode, time.Minute).(*ExpireAfterAccess); !ok {
		t.Fatal("access mode should build ExpireAfterAccess")
	}
	if _, ok := New(WriteMode, time.Minute).(*ExpireAfterWrite); !ok {
		t.Fatal("write mode should build ExpireAfterWrite")
	}
	if _, ok := New("", time.Minute).(PerEntry); !ok {
		t.Fatal("default should be PerEntry")
	}
}

func TestPerEntryLeavesExpiryAlone(t *testing.T) {
	ent := &types.CacheEntry{}
	s := PerEntry{}
	s.OnWrite(ent, t0)
	s.OnAccess(ent, t0)

	if !ent.ExpireAt.IsZero() || s.IsExpired(ent, t0.Add(24*time.Hour)) {
		t.Fatal("entry without ttl must never expire")
	}
}

func TestExpireAfterAccessSlides(t *testing.T) {
	s := &ExpireAfterAccess{TTL: time.Minute}

	ent := &types.CacheEntry{}
	s.OnWrite(ent, t0)
	if want := t0.Add(time.Minute); !ent.ExpireAt.Equal(want) {
		t.Fatalf("expected default window, got %v", ent.ExpireAt)
	}

	own := &types.CacheEntry{TTL: 5 * time.Second, ExpireAt: t0.Add(5 * time.Second)}
	s.OnWrite(own, t0)
	s.OnAccess(own, t0.Add(4*time.Second))
	if want := t0.Add(9 * time.Second); !own.ExpireAt.Equal(want) {
		t.Fatalf("expected the entry ttl to slide, got %v", own.ExpireAt)
	}
}

func TestExpireAfterWriteDefaultsOnly(t *testing.T) {
	s := &ExpireAfterWrite{TTL: time.Minute}

	ent := &types.CacheEntry{}
	s.OnWrite(ent, t0)
	s.OnAccess(ent, t0.Add(30*time.Second))

	if !s.IsExpired(ent, t0.Add(time.Minute)) {
		t.Fatal("reads must not extend a write-based lifetime")
	}
}
