// Package ratelimit implements the per-(key, operation) token-bucket gates
// that guard control-plane operations: lazy refill, take iff tokens >= 1.0.
package ratelimit

import (
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// BucketConfig is the capacity and refill rate for one operation kind.
type BucketConfig struct {
	Capacity        float64
	RefillPerSecond float64
}

// Operation kinds, matching the defaults table.
const (
	OpTouch = "touch"
	OpKey   = "key"
	OpMacro = "macro"
	OpAI    = "ai"
	OpAuth  = "auth"
)

// DefaultConfigs are the relay's built-in per-operation defaults.
var DefaultConfigs = map[string]BucketConfig{
	OpTouch: {Capacity: 100, RefillPerSecond: 100},
	OpKey:   {Capacity: 10, RefillPerSecond: 10},
	OpMacro: {Capacity: 1, RefillPerSecond: 1},
	OpAI:    {Capacity: 2, RefillPerSecond: 2},
	OpAuth:  {Capacity: 5, RefillPerSecond: 5.0 / 60.0},
}

// Limiter serializes bucket lookups under a single mutex and lazily creates a bucket
// on first access to (key, op), per "lazily created on first access".
type Limiter struct {
	mu      sync.Mutex
	configs map[string]BucketConfig
	buckets map[string]*rate.Limiter
}

// New creates a Limiter using the given per-operation configs (typically DefaultConfigs).
func New(configs map[string]BucketConfig) *Limiter {
	return &Limiter{
		configs: configs,
		buckets: make(map[string]*rate.Limiter),
	}
}

func bucketKey(key, op string) string { return key + "|" + op }

// Allow lazily refills and, iff at least one token is available, takes it and returns true.
// Unknown operation kinds always allow (no configured limit).
func (l *Limiter) Allow(key, op string) bool {
	l.mu.Lock()
	b, ok := l.buckets[bucketKey(key, op)]
	if !ok {
		cfg, known := l.configs[op]
		if !known {
			l.mu.Unlock()
			return true
		}
		b = rate.NewLimiter(rate.Limit(cfg.RefillPerSecond), int(cfg.Capacity))
		l.buckets[bucketKey(key, op)] = b
	}
	l.mu.Unlock()
	return b.Allow()
}

// Reset drops every bucket keyed by key (across all operations), per "reset(key) drops
// all buckets keyed by that key" — called with the session id when a device-leg disconnects.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	prefix := key + "|"
	for k := range l.buckets {
		if strings.HasPrefix(k, prefix) {
			delete(l.buckets, k)
		}
	}
}
