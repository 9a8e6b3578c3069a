// Package cache memoises search responses in Redis. Keys cover the KB
// version and the UTC date, so a reload or a new day never serves a stale
// freshness decision, and concurrent misses for one key share a single
// computation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/searcher/executor"
	pkgredis "github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/resilience"
)

const keyPrefix = "kbsearch:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Stats are cumulative hit and miss counts since start plus the state of
// the breaker guarding the store.
type Stats struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Breaker string `json:"breaker"`
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New wraps store with the default breaker: five consecutive store errors
// bypass the cache for thirty seconds.
func New(store Store, ttl time.Duration) *QueryCache {
	return NewWithBreaker(store, ttl, resilience.CircuitBreakerConfig{})
}

func NewWithBreaker(store Store, ttl time.Duration, cb resilience.CircuitBreakerConfig) *QueryCache {
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker("redis-cache", cb),
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, key string) (*executor.Response, bool) {
	var data string
	found := false
	err := c.breaker.Execute(func() error {
		v, err := c.store.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		if err != nil {
			return err
		}
		data, found = v, true
		return nil
	})
	if err != nil || !found {
		switch {
		case errors.Is(err, resilience.ErrCircuitOpen):
			c.logger.Debug("cache bypassed", "key", key)
		case err != nil:
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var resp executor.Response
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", key)
	return &resp, true
}

func (c *QueryCache) Set(ctx context.Context, key string, resp *executor.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached response for key, or runs compute once for
// all concurrent callers and caches its result. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key string,
	compute func() (*executor.Response, error),
) (*executor.Response, bool, error) {
	if resp, ok := c.Get(ctx, key); ok {
		return resp, true, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		resp, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, resp)
		return resp, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.Response), false, nil
}

// Invalidate drops every cached search response.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Breaker: c.breaker.GetState().String(),
	}
}

// Key derives the cache key of req against kbVersion on now's UTC date.
// Requests that differ only in term order, case or facet order share a key.
func Key(kbVersion string, now time.Time, req executor.Request) string {
	raw := strings.Join([]string{
		kbVersion,
		now.UTC().Format(time.DateOnly),
		normalizeRequest(req),
	}, "|")
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

func normalizeRequest(req executor.Request) string {
	terms := tokenizer.Terms(req.Query)
	sort.Strings(terms)
	mode := "OR"
	if req.ExactPhrase {
		mode = "AND"
	}
	return strings.Join([]string{
		mode,
		strings.Join(terms, ","),
		"type=" + sortedSet(req.Criteria.Types, false),
		"jur=" + sortedSet(req.Criteria.Jurisdictions, false),
		"tag=" + sortedSet(req.Criteria.Tags, true),
		fmt.Sprintf("approved=%t", req.Criteria.ApprovedOnly),
	}, "|")
}

func sortedSet(values []string, fold bool) string {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if fold {
			v = strings.ToLower(v)
		}
		if v != "" {
			set[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	for i, v := range out {
		out[i] = strconv.Quote(v)
	}
	return strings.Join(out, ",")
}
