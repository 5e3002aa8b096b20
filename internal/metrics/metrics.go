// Package metrics exposes the gateway's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts counts SIWE verification attempts by outcome code.
	AuthAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cerberus",
		Subsystem: "auth",
		Name:      "attempts_total",
		Help:      "SIWE verification attempts by outcome.",
	}, []string{"outcome"})

	// CacheHits counts rule result cache hits.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cerberus",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Rule result cache hits.",
	})

	// CacheMisses counts rule result cache misses (computations started).
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cerberus",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Rule result cache misses.",
	})

	// RPCCalls counts blockchain call attempts by endpoint role and result.
	RPCCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cerberus",
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "Blockchain call attempts by endpoint role and result.",
	}, []string{"endpoint", "result"})

	// PolicyDecisions counts policy evaluations by policy name and decision.
	PolicyDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cerberus",
		Subsystem: "policy",
		Name:      "decisions_total",
		Help:      "Policy evaluations by name and decision.",
	}, []string{"policy", "decision"})

	// RateLimited counts requests rejected by the rate limiter per endpoint class.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cerberus",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	}, []string{"class"})
)
