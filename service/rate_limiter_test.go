package service

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterBudget(t *testing.T) {
	registry := NewRateLimiterRegistry(map[LimitClass]ClassLimit{
		LimitClassVerify: {PerMinute: 20, Burst: 20},
	})

	granted := 0
	for i := 0; i < 25; i++ {
		if ok, _ := registry.Allow(LimitClassVerify, "1.2.3.4"); ok {
			granted++
		}
	}
	assert.Equal(t, 20, granted, "burst must stop at the per-minute budget")

	_, retryAfter := registry.Allow(LimitClassVerify, "1.2.3.4")
	assert.Greater(t, retryAfter.Seconds(), 0.0)
}

func TestRateLimiterIdentifiersIndependent(t *testing.T) {
	registry := NewRateLimiterRegistry(map[LimitClass]ClassLimit{
		LimitClassNonce: {PerMinute: 1, Burst: 1},
	})

	ok, _ := registry.Allow(LimitClassNonce, "1.1.1.1")
	assert.True(t, ok)
	ok, _ = registry.Allow(LimitClassNonce, "1.1.1.1")
	assert.False(t, ok)

	ok, _ = registry.Allow(LimitClassNonce, "2.2.2.2")
	assert.True(t, ok, "a different identifier has its own budget")
}

func TestRateLimiterClassesIndependent(t *testing.T) {
	registry := NewRateLimiterRegistry(map[LimitClass]ClassLimit{
		LimitClassNonce:  {PerMinute: 1, Burst: 1},
		LimitClassVerify: {PerMinute: 1, Burst: 1},
	})

	ok, _ := registry.Allow(LimitClassNonce, "1.1.1.1")
	assert.True(t, ok)
	ok, _ = registry.Allow(LimitClassVerify, "1.1.1.1")
	assert.True(t, ok, "classes keep separate budgets per identifier")
}

func TestRateLimiterConcurrentBurst(t *testing.T) {
	registry := NewRateLimiterRegistry(map[LimitClass]ClassLimit{
		LimitClassVerify: {PerMinute: 10, Burst: 10},
	})

	var granted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := registry.Allow(LimitClassVerify, "9.9.9.9"); ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), granted.Load(), "concurrent bursts must not undercount")
}
