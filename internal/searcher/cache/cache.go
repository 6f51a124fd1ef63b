// Package cache keeps answered queries in Redis so repeated searches skip
// the shard scan. Redis trouble trips a circuit breaker and queries fall
// through to the engine.
package cache

import (
	"context"
	"crypto/sha256"
	"errors"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/internal/searcher/engine"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Corpus-Search-Engine/pkg/resilience"
)

const keyPrefix = "search:"

// Store is the subset of the Redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

var _ Store = (*pkgredis.Client)(nil)

// Entry is what gets cached for one query.
type Entry struct {
	Terms       []string        `json:"terms"`
	Results     []engine.Result `json:"results"`
	Suggestions []string        `json:"suggestions,omitempty"`
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	logger := slog.Default().With("component", "query-cache")
	return &QueryCache{
		store: store,
		ttl:   ttl,
		breaker: resilience.NewCircuitBreaker("redis-query-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			IsFailure: func(err error) bool {
				return !pkgredis.IsNilError(err) && !errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to resilience.State) {
				logger.Warn("query cache breaker state changed", "from", from, "to", to)
			},
		}),
		metrics: m,
		logger:  logger,
	}
}

// Get returns the cached entry for terms. Any Redis failure is a miss.
func (c *QueryCache) Get(ctx context.Context, terms []string, limit int) (*Entry, bool) {
	key := BuildKey(terms, limit)
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		return err
	})
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	c.metrics.ResultCacheLookup(true)
	return &entry, true
}

func (c *QueryCache) Set(ctx context.Context, terms []string, limit int, entry *Entry) {
	key := BuildKey(terms, limit)
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached entry or runs compute once per key, even
// when many requests miss at the same time.
func (c *QueryCache) GetOrCompute(ctx context.Context, terms []string, limit int, compute func() (*Entry, error)) (*Entry, bool, error) {
	if entry, ok := c.Get(ctx, terms, limit); ok {
		return entry, true, nil
	}
	val, err, _ := c.group.Do(BuildKey(terms, limit), func() (any, error) {
		entry, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, terms, limit, entry)
		return entry, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*Entry), false, nil
}

// Invalidate drops every cached query.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.store.FlushByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BreakerState reports the circuit state and call counts, for the cache
// stats endpoint.
func (c *QueryCache) BreakerState() resilience.Counts {
	return c.breaker.Counts()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	c.metrics.ResultCacheLookup(false)
}

// BuildKey hashes the sorted stemmed terms, so "Dogs cats" and "cat dog"
// share an entry.
func BuildKey(terms []string, limit int) string {
	sorted := append([]string(nil), terms...)
	sort.Strings(sorted)
	raw := fmt.Sprintf("%s:limit=%d", strings.Join(sorted, ","), limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
