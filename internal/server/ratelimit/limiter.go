// Implements a thread-safe token bucket rate limiter.

// Package ratelimit implements per-client token bucket rate limiting for the
// HTTP API.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// staleAfter is how long an idle, full bucket is kept.
const staleAfter = 10 * time.Minute

// Result contains the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Limit      int           // requests per window
	Remaining  int           // requests left in current window
	ResetAt    time.Time     // when the bucket will be full again
	RetryAfter time.Duration // how long to wait before retrying (0 if allowed)
}

// Limiter manages rate limit buckets per key using the token bucket algorithm.
type Limiter struct {
	rate   rate.Limit
	burst  int
	window time.Duration
	now    func() time.Time
	stop   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter creates a rate limiter allowing requests tokens per window with
// burst capacity. Close must be called to stop the cleanup goroutine.
func NewLimiter(requests int, window time.Duration, burst int) *Limiter {
	l := &Limiter{
		rate:    rate.Limit(float64(requests) / window.Seconds()),
		burst:   burst,
		window:  window,
		now:     time.Now,
		stop:    make(chan struct{}),
		buckets: make(map[string]*bucket),
	}
	go l.cleanupLoop()
	return l
}

// Allow consumes one token from the key's bucket if one is available.
func (l *Limiter) Allow(key string) Result {
	now := l.now()
	l.mu.Lock()
	b := l.buckets[key]
	if b == nil {
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	r := b.limiter.ReserveN(now, 1)
	allowed := r.OK() && r.DelayFrom(now) == 0
	if !allowed && r.OK() {
		r.CancelAt(now)
	}

	tokens := b.limiter.TokensAt(now)
	res := Result{
		Allowed:   allowed,
		Limit:     int(float64(l.rate) * l.window.Seconds()),
		Remaining: max(int(tokens), 0),
		ResetAt:   now.Add(time.Duration((float64(l.burst) - tokens) / float64(l.rate) * float64(time.Second))),
	}
	if !allowed {
		res.RetryAfter = max(time.Duration(float64(time.Second)/float64(l.rate)), time.Second)
	}
	return res
}

// Len returns the number of tracked buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(staleAfter)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stop:
			return
		}
	}
}

// cleanup removes buckets that are idle and full.
func (l *Limiter) cleanup() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > staleAfter && b.limiter.TokensAt(now) >= float64(l.burst) {
			delete(l.buckets, key)
		}
	}
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}
