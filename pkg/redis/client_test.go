package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(context.Background(), config.RedisConfig{Addr: mr.Addr(), PoolSize: 2})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestGetSetDel(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Get(ctx, "missing"); !IsNilError(err) {
		t.Fatalf("Get(missing) error = %v, want redis nil", err)
	}
	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("Get(k) = %q, %v", got, err)
	}
	if ttl := mr.TTL("k"); ttl != time.Minute {
		t.Errorf("TTL = %v, want 1m", ttl)
	}
	if err := c.Del(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if mr.Exists("k") {
		t.Error("key still present after Del")
	}
}

func TestFlushByPattern(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	for i := 0; i < 150; i++ {
		mr.Set(fmt.Sprintf("search:%d", i), "x")
	}
	mr.Set("other", "y")

	n, err := c.FlushByPattern(ctx, "search:*")
	if err != nil {
		t.Fatalf("FlushByPattern: %v", err)
	}
	if n != 150 {
		t.Errorf("deleted %d keys, want 150", n)
	}
	if !mr.Exists("other") {
		t.Error("unrelated key was deleted")
	}
}

func TestNewClientFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	if _, err := NewClient(context.Background(), config.RedisConfig{Addr: addr}); err == nil {
		t.Fatal("expected ping failure")
	}
}
