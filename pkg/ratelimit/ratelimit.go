// Package ratelimit implements an in-memory token-bucket rate limiter
// keyed by an arbitrary string (typically the client address).
package ratelimit

import (
	"sync"
	"time"
)

// bucket tracks the token state for a single key.
type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// Limiter refills each key's bucket continuously at limit/window tokens per
// second, capped at limit. Stale keys are swept in the background.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	window  time.Duration
}

// New creates a Limiter with the given refill window.
func New(window time.Duration) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		window:  window,
	}
	go l.sweep()
	return l
}

// Allow consumes one token for key if any is available and reports whether
// the request is within the limit.
func (l *Limiter) Allow(key string, limit int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{
			tokens:     float64(limit - 1),
			lastRefill: now,
		}
		return true
	}

	elapsed := now.Sub(b.lastRefill)
	b.lastRefill = now

	b.tokens += elapsed.Seconds() * float64(limit) / l.window.Seconds()
	if b.tokens > float64(limit) {
		b.tokens = float64(limit)
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Reset clears the state for key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// sweep drops keys idle for more than two windows.
func (l *Limiter) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		l.mu.Lock()
		cutoff := time.Now().Add(-2 * l.window)
		for key, b := range l.buckets {
			if b.lastRefill.Before(cutoff) {
				delete(l.buckets, key)
			}
		}
		l.mu.Unlock()
	}
}
