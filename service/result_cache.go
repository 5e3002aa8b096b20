package service

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"time"

	"github.com/layer-3/cerberus/internal/metrics"
)

// DefaultCacheTTL is the rule result TTL when the deployment does not override it
const DefaultCacheTTL = 300 * time.Second

type cacheValue struct {
	value      any
	computedAt time.Time
	ttl        time.Duration
}

type inflightCall struct {
	done  chan struct{}
	value any
	err   error
}

// ResultCache is a TTL cache over rule evaluation results with single-flight
// semantics: concurrent GetOrCompute calls for one key share a single
// computation. The pending-call table is guarded by the same mutex as the
// value table, so the lookup/claim step is atomic. Failed computations are
// never stored, and the pending entry is removed on both success and failure
// so a failed key can be retried immediately.
type ResultCache struct {
	mu       sync.Mutex
	values   map[string]cacheValue
	inflight map[string]*inflightCall

	now func() time.Time
}

// NewResultCache creates an empty ResultCache.
func NewResultCache() *ResultCache {
	return &ResultCache{
		values:   make(map[string]cacheValue),
		inflight: make(map[string]*inflightCall),
		now:      time.Now,
	}
}

// CacheKey derives a stable key from rule type, chain, contract, subject and
// any rule-specific extras.
func CacheKey(ruleType string, chainID uint64, contract, subject string, extra ...string) string {
	var chainBuf [8]byte
	binary.BigEndian.PutUint64(chainBuf[:], chainID)

	h := sha256.New()
	h.Write([]byte(ruleType))
	h.Write([]byte{0})
	h.Write(chainBuf[:])
	h.Write([]byte{0})
	h.Write([]byte(contract))
	h.Write([]byte{0})
	h.Write([]byte(subject))
	for _, e := range extra {
		h.Write([]byte{0})
		h.Write([]byte(e))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// GetOrCompute returns the cached value for key if fresh, otherwise computes
// it. Exactly one computation runs per key at a time; latecomers wait for it.
// The computation runs detached from the first caller's context so that one
// caller disconnecting does not fail the remaining waiters; each waiter still
// honours its own ctx while waiting.
func (c *ResultCache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) (any, error)) (any, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	c.mu.Lock()
	if v, ok := c.values[key]; ok && c.now().Sub(v.computedAt) < v.ttl {
		c.mu.Unlock()
		metrics.CacheHits.Inc()
		return v.value, nil
	}

	if call, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		metrics.CacheHits.Inc()
		select {
		case <-call.done:
			return call.value, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	call := &inflightCall{done: make(chan struct{})}
	c.inflight[key] = call
	c.mu.Unlock()
	metrics.CacheMisses.Inc()

	go func() {
		value, err := compute(context.WithoutCancel(ctx))

		c.mu.Lock()
		delete(c.inflight, key)
		if err == nil {
			c.values[key] = cacheValue{value: value, computedAt: c.now(), ttl: ttl}
		}
		c.mu.Unlock()

		call.value = value
		call.err = err
		close(call.done)
	}()

	select {
	case <-call.done:
		return call.value, call.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops the cached value for key, if any.
func (c *ResultCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
}

// Size returns the number of cached values, stale entries included.
func (c *ResultCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}
