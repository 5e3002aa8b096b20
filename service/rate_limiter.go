package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LimitClass names an endpoint class with its own request budget
type LimitClass string

const (
	// LimitClassNonce covers the nonce endpoint (60 req/min per identifier)
	LimitClassNonce LimitClass = "nonce"

	// LimitClassVerify covers the verify endpoint (20 req/min per identifier)
	LimitClassVerify LimitClass = "verify"
)

// ClassLimit is the per-minute budget for one endpoint class
type ClassLimit struct {
	PerMinute int
	Burst     int
}

// DefaultClassLimits are the budgets from the service contract.
func DefaultClassLimits() map[LimitClass]ClassLimit {
	return map[LimitClass]ClassLimit{
		LimitClassNonce:  {PerMinute: 60, Burst: 60},
		LimitClassVerify: {PerMinute: 20, Burst: 20},
	}
}

// RateLimiterRegistry keeps one token-bucket limiter per (class, identifier).
// Lookup takes the read lock; creation retakes the write lock and
// double-checks, so concurrent first requests for one identifier share a
// single limiter and bursts cannot undercount.
type RateLimiterRegistry struct {
	mu       sync.RWMutex
	limits   map[LimitClass]ClassLimit
	limiters map[string]*rate.Limiter
}

// NewRateLimiterRegistry creates a registry with the given class budgets
// (DefaultClassLimits if nil).
func NewRateLimiterRegistry(limits map[LimitClass]ClassLimit) *RateLimiterRegistry {
	if limits == nil {
		limits = DefaultClassLimits()
	}
	return &RateLimiterRegistry{
		limits:   limits,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether the identifier may proceed in the given class. When
// denied it also returns how long the caller should wait before retrying.
func (r *RateLimiterRegistry) Allow(class LimitClass, identifier string) (bool, time.Duration) {
	limiter := r.getOrCreate(class, identifier)

	reservation := limiter.Reserve()
	if !reservation.OK() {
		return false, time.Minute
	}
	if delay := reservation.Delay(); delay > 0 {
		reservation.Cancel()
		return false, delay
	}
	return true, 0
}

func (r *RateLimiterRegistry) getOrCreate(class LimitClass, identifier string) *rate.Limiter {
	key := string(class) + ":" + identifier

	r.mu.RLock()
	limiter, exists := r.limiters[key]
	r.mu.RUnlock()
	if exists {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if limiter, exists := r.limiters[key]; exists {
		return limiter
	}

	limit, ok := r.limits[class]
	if !ok {
		limit = ClassLimit{PerMinute: 60, Burst: 60}
	}
	limiter = rate.NewLimiter(rate.Limit(float64(limit.PerMinute)/60.0), limit.Burst)
	r.limiters[key] = limiter
	return limiter
}

// Clear removes all limiters.
func (r *RateLimiterRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters = make(map[string]*rate.Limiter)
}
