package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	c := NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), ttl)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestGetSet(t *testing.T) {
	c, mr := newTestCache(t, time.Hour)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "abc"); err != nil || ok {
		t.Fatalf("Get on empty cache = (%v, %v), want miss", ok, err)
	}

	if err := c.Set(ctx, "abc", "insight text"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !mr.Exists("insight:abc") {
		t.Fatal("expected prefixed key in redis")
	}

	got, ok, err := c.Get(ctx, "abc")
	if err != nil || !ok {
		t.Fatalf("Get = (%v, %v), want hit", ok, err)
	}
	if got != "insight text" {
		t.Errorf("Get = %q", got)
	}
}

func TestTTLJitter(t *testing.T) {
	c, mr := newTestCache(t, time.Hour)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c", "d"} {
		if err := c.Set(ctx, key, "v"); err != nil {
			t.Fatalf("Set: %v", err)
		}
		ttl := mr.TTL(KeyPrefix + key)
		if ttl < time.Hour || ttl > time.Hour+6*time.Minute {
			t.Errorf("TTL(%s) = %v, want within [1h, 1h6m]", key, ttl)
		}
	}
}

func TestExpiry(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("expected entry to expire")
	}
}

func TestNoTTL(t *testing.T) {
	c, mr := newTestCache(t, 0)
	if err := c.Set(context.Background(), "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ttl := mr.TTL(KeyPrefix + "k"); ttl != 0 {
		t.Errorf("TTL = %v, want no expiry", ttl)
	}
}

func TestNewPingFailure(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := New(ctx, Options{Addr: addr}); err == nil {
		t.Error("expected error connecting to closed server")
	}
}

func TestNew(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	c, err := New(context.Background(), Options{Addr: mr.Addr(), TTL: time.Minute})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()
	if err := c.Set(context.Background(), "k", "v"); err != nil {
		t.Errorf("Set: %v", err)
	}
}
