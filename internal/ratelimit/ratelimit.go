// Package ratelimit provides a keyed rate limiter using token bucket algorithm.
// It supports both non-blocking (Allow) and blocking (Wait) operations.
//
// Outbound callers (catalog sources) use Spacing, where every key admits one
// call per configured interval. Inbound handlers use New with a requests per
// second budget and a burst.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// IdleTTL is how long a key of a New limiter may go unused before it is
// evicted. Keys whose bucket has not refilled by then are kept.
const IdleTTL = 10 * time.Minute

// KeyedRateLimiter manages per-key rate limiting.
// Each unique key gets its own independent rate limiter.
type KeyedRateLimiter struct {
	mu        sync.RWMutex
	limiters  map[string]*entry
	overrides map[string]rate.Limit
	limit     rate.Limit
	burst     int

	// Cleanup
	done     chan struct{}
	stopOnce sync.Once
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// New creates a new keyed rate limiter.
// rps: requests per second allowed.
// burst: maximum burst size (tokens available immediately).
// Keys idle for IdleTTL are evicted until Stop is called.
func New(rps float64, burst int) *KeyedRateLimiter {
	krl := &KeyedRateLimiter{
		limiters:  make(map[string]*entry),
		overrides: make(map[string]rate.Limit),
		limit:     rate.Limit(rps),
		burst:     burst,
		done:      make(chan struct{}),
	}

	go krl.cleanup(IdleTTL)

	return krl
}

// NewSpacing creates a limiter that admits at most one call per interval for
// each key. A non-positive interval disables limiting.
func NewSpacing(interval time.Duration) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		limiters:  make(map[string]*entry),
		overrides: make(map[string]rate.Limit),
		limit:     intervalLimit(interval),
		burst:     1,
		done:      make(chan struct{}),
	}
}

// SetInterval sets the minimum spacing for one key. Calls already waiting
// keep the spacing they started with.
func (krl *KeyedRateLimiter) SetInterval(key string, interval time.Duration) {
	krl.mu.Lock()
	defer krl.mu.Unlock()

	l := intervalLimit(interval)
	krl.overrides[key] = l
	if e, ok := krl.limiters[key]; ok {
		e.limiter.SetLimit(l)
	}
}

// Interval reports the spacing in effect for key.
func (krl *KeyedRateLimiter) Interval(key string) time.Duration {
	krl.mu.RLock()
	defer krl.mu.RUnlock()

	l, ok := krl.overrides[key]
	if !ok {
		l = krl.limit
	}
	if l == rate.Inf || l <= 0 {
		return 0
	}
	return time.Duration(math.Round(float64(time.Second) / float64(l)))
}

// Allow checks if a request for the given key should be allowed.
// Returns immediately without blocking. Use for inbound request protection.
func (krl *KeyedRateLimiter) Allow(key string) bool {
	return krl.getLimiter(key).Allow()
}

// Wait blocks until a request for the given key is allowed or context is canceled.
// Use for outbound requests where you want to respect rate limits.
func (krl *KeyedRateLimiter) Wait(ctx context.Context, key string) error {
	return krl.getLimiter(key).Wait(ctx)
}

// getLimiter returns the limiter for a key, creating one if needed.
func (krl *KeyedRateLimiter) getLimiter(key string) *rate.Limiter {
	now := time.Now().UnixNano()

	// Fast path: read lock
	krl.mu.RLock()
	e, exists := krl.limiters[key]
	krl.mu.RUnlock()

	if exists {
		e.lastSeen.Store(now)
		return e.limiter
	}

	// Slow path: write lock to create
	krl.mu.Lock()
	defer krl.mu.Unlock()

	// Double-check after acquiring write lock
	if e, exists = krl.limiters[key]; !exists {
		l, ok := krl.overrides[key]
		if !ok {
			l = krl.limit
		}
		e = &entry{limiter: rate.NewLimiter(l, krl.burst)}
		krl.limiters[key] = e
	}
	e.lastSeen.Store(now)
	return e.limiter
}

// Stop shuts down the cleanup goroutine. It is safe to call more than once.
func (krl *KeyedRateLimiter) Stop() {
	krl.stopOnce.Do(func() {
		close(krl.done)
	})
}

// Len returns the number of keys currently tracked.
func (krl *KeyedRateLimiter) Len() int {
	krl.mu.RLock()
	defer krl.mu.RUnlock()
	return len(krl.limiters)
}

func (krl *KeyedRateLimiter) cleanup(ttl time.Duration) {
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			krl.evictIdle(now, ttl)
		case <-krl.done:
			return
		}
	}
}

// evictIdle drops keys unused for ttl whose bucket is full again, so a
// recreated limiter grants nothing the evicted one would not have.
func (krl *KeyedRateLimiter) evictIdle(now time.Time, ttl time.Duration) int {
	cutoff := now.Add(-ttl).UnixNano()

	krl.mu.Lock()
	defer krl.mu.Unlock()

	var evicted int
	for key, e := range krl.limiters {
		if e.lastSeen.Load() > cutoff {
			continue
		}
		if e.limiter.TokensAt(now) < float64(e.limiter.Burst()) {
			continue
		}
		delete(krl.limiters, key)
		evicted++
	}
	return evicted
}

func intervalLimit(interval time.Duration) rate.Limit {
	if interval <= 0 {
		return rate.Inf
	}
	return rate.Every(interval)
}
