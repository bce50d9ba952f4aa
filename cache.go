package pubfront

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

type cacheEntry[V any] struct {
	value   V
	fetched time.Time
}

// PageCache is an in-memory, per-key revalidating cache. A fresh entry is
// served directly. A stale entry is served while a single background
// reload runs; if that reload fails the stale value is kept. A missing
// entry is loaded inline, with concurrent loads of one key collapsed.
// Errors are never cached.
//
// Loads run detached from the caller that started them, bounded by
// timeout, so one caller giving up does not fail the others waiting on
// the same key.
type PageCache[V any] struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry[V]
	ttl     time.Duration
	timeout time.Duration
	loads   singleflight.Group
	results *prometheus.CounterVec // labels: result
	onError func(key string, err error)
	now     func() time.Time
	bg      sync.WaitGroup
}

// NewPageCache creates a PageCache whose entries go stale after ttl. A
// single load may take up to timeout; zero means no limit. results may
// be nil.
func NewPageCache[V any](ttl, timeout time.Duration, results *prometheus.CounterVec) *PageCache[V] {
	return &PageCache[V]{
		entries: make(map[string]cacheEntry[V]),
		ttl:     ttl,
		timeout: timeout,
		results: results,
		now:     time.Now,
	}
}

func (c *PageCache[V]) record(result string) {
	if c.results != nil {
		c.results.WithLabelValues(result).Inc()
	}
}

// Get returns the value for key, calling load when it is missing or stale.
func (c *PageCache[V]) Get(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		if c.now().Sub(e.fetched) < c.ttl {
			c.record("hit")
			return e.value, nil
		}
		c.record("stale")
		c.revalidate(ctx, key, load)
		return e.value, nil
	}

	c.record("miss")
	ch := c.loads.DoChan(key, func() (any, error) {
		lctx, cancel := c.detach(ctx)
		defer cancel()
		return c.fill(lctx, key, load)
	})
	select {
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			var zero V
			return zero, r.Err
		}
		return r.Val.(V), nil
	}
}

func (c *PageCache[V]) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

func (c *PageCache[V]) revalidate(ctx context.Context, key string, load func(context.Context) (V, error)) {
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		_, err, _ := c.loads.Do(key, func() (any, error) {
			lctx, cancel := c.detach(ctx)
			defer cancel()
			return c.fill(lctx, key, load)
		})
		if err != nil && c.onError != nil {
			c.onError(key, err)
		}
	}()
}

func (c *PageCache[V]) fill(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry[V]{value: v, fetched: c.now()}
	c.mu.Unlock()
	return v, nil
}

// Has reports whether key has a cached value, fresh or stale.
func (c *PageCache[V]) Has(key string) bool {
	c.mu.RLock()
	_, ok := c.entries[key]
	c.mu.RUnlock()
	return ok
}

// ExpireAll marks every entry stale. Entries keep being served while the
// next Get of each key reloads it in the background.
func (c *PageCache[V]) ExpireAll() {
	c.mu.Lock()
	for k, e := range c.entries {
		e.fetched = time.Time{}
		c.entries[k] = e
	}
	c.mu.Unlock()
}

// Wait blocks until background reloads started so far have finished.
func (c *PageCache[V]) Wait() {
	c.bg.Wait()
}
