// Package ratelimit provides a single-process token-bucket limiter keyed by
// client address.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

type Config struct {
	RPS   float64
	Burst int

	// Operational bounds for the in-memory map.
	MaxEntries int
	EntryTTL   time.Duration
}

// Limiter tracks one token bucket per client key.
type Limiter struct {
	cfg Config

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens   float64
	last     time.Time
	lastSeen time.Time
}

func New(cfg Config) *Limiter {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10_000
	}
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = 30 * time.Minute
	}
	return &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
	}
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool
	RetryAfter int // seconds; 0 when unknown
}

// Allow consumes one token for key if available. A zero RPS or Burst
// disables limiting entirely.
func (l *Limiter) Allow(key string, now time.Time) Decision {
	if l == nil || l.cfg.RPS <= 0 || l.cfg.Burst <= 0 {
		return Decision{Allowed: true}
	}
	if key == "" {
		key = "anonymous"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= l.cfg.MaxEntries {
			l.evictStale(now)
		}
		b = &bucket{tokens: float64(l.cfg.Burst), last: now}
		l.buckets[key] = b
	}
	b.lastSeen = now

	// Refill since last consumption.
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(float64(l.cfg.Burst), b.tokens+elapsed*l.cfg.RPS)
		b.last = now
	}

	if b.tokens < 1 {
		deficit := 1 - b.tokens
		retryAfter := int(math.Ceil(deficit / l.cfg.RPS))
		if retryAfter < 1 {
			retryAfter = 1
		}
		return Decision{Allowed: false, RetryAfter: retryAfter}
	}
	b.tokens--
	return Decision{Allowed: true}
}

// Len reports the number of tracked client keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// evictStale removes entries idle past the TTL. Caller holds the lock.
func (l *Limiter) evictStale(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.cfg.EntryTTL {
			delete(l.buckets, key)
		}
	}
}
