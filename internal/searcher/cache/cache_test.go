package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/searcher/engine"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/config"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/redis"
)

func newTestCache(t *testing.T) (*QueryCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := pkgredis.NewClient(context.Background(), config.RedisConfig{Addr: mr.Addr(), PoolSize: 4})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return New(client, time.Minute, nil), mr
}

func sampleEntry() *Entry {
	return &Entry{
		Terms:   []string{"dog"},
		Results: []engine.Result{{DocID: 1, URL: "http://a.example/", Score: 1.5}},
	}
}

func TestBuildKeyIgnoresTermOrder(t *testing.T) {
	if BuildKey([]string{"dog", "cat"}, 5) != BuildKey([]string{"cat", "dog"}, 5) {
		t.Error("term order changed the key")
	}
	if BuildKey([]string{"dog"}, 5) == BuildKey([]string{"dog"}, 3) {
		t.Error("limit not part of the key")
	}
}

func TestGetSet(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	terms := []string{"dog"}

	if _, ok := c.Get(ctx, terms, 5); ok {
		t.Fatal("hit on empty cache")
	}
	c.Set(ctx, terms, 5, sampleEntry())
	got, ok := c.Get(ctx, terms, 5)
	if !ok || len(got.Results) != 1 || got.Results[0].URL != "http://a.example/" {
		t.Fatalf("Get = %+v, %v", got, ok)
	}
	if ttl := mr.TTL(BuildKey(terms, 5)); ttl != time.Minute {
		t.Errorf("ttl = %v", ttl)
	}
	if hits, misses := c.Stats(); hits != 1 || misses != 1 {
		t.Errorf("stats = %d/%d", hits, misses)
	}
}

func TestGetOrComputeCollapsesConcurrentMisses(t *testing.T) {
	c, _ := newTestCache(t)
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), []string{"cat"}, 5, func() (*Entry, error) {
				calls.Add(1)
				<-release
				return sampleEntry(), nil
			})
			if err != nil {
				t.Errorf("GetOrCompute: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("compute ran %d times, want 1", n)
	}
	if _, hit, _ := c.GetOrCompute(context.Background(), []string{"cat"}, 5, nil); !hit {
		t.Error("second lookup missed")
	}
}

func TestGetOrComputeError(t *testing.T) {
	c, _ := newTestCache(t)
	boom := errors.New("engine down")
	_, _, err := c.GetOrCompute(context.Background(), []string{"x"}, 5, func() (*Entry, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestInvalidate(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	c.Set(ctx, []string{"dog"}, 5, sampleEntry())
	c.Set(ctx, []string{"cat"}, 5, sampleEntry())
	mr.Set("unrelated", "keep")

	if err := c.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(ctx, []string{"dog"}, 5); ok {
		t.Error("entry survived invalidation")
	}
	if !mr.Exists("unrelated") {
		t.Error("invalidation removed a foreign key")
	}
}

func TestRedisOutageFallsThrough(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	entry, hit, err := c.GetOrCompute(context.Background(), []string{"dog"}, 5, func() (*Entry, error) {
		return sampleEntry(), nil
	})
	if err != nil || hit || entry == nil {
		t.Fatalf("GetOrCompute = %+v, %v, %v", entry, hit, err)
	}
	for i := 0; i < 5; i++ {
		c.Get(context.Background(), []string{"dog"}, 5)
	}
	if state := c.BreakerState().State; state != "open" {
		t.Errorf("breaker = %s, want open", state)
	}
}
