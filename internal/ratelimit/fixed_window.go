package ratelimit

import (
	"strings"
	"sync"
	"time"

	"github.com/veritasweb/payments/internal/clock"
	"go.uber.org/zap"
)

// bucket tracks remaining tokens for one client key within the current
// window. Tokens are only consumed mid-window; the bucket refills to
// capacity when the window elapses. This is a fixed-window counter, a
// deliberate simplification over an exact token bucket.
type bucket struct {
	tokens        int
	windowStarted time.Time
}

// FixedWindowLimiter admits or denies requests per client key before any
// expensive verification work runs.
type FixedWindowLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity int
	window   time.Duration
	maxKeys  int
	clock    clock.Clock
	log      *zap.Logger
}

// NewFixedWindowLimiter builds a limiter with the given per-key capacity
// and window. maxKeys bounds the bucket map; when exceeded the stalest
// bucket is evicted.
func NewFixedWindowLimiter(capacity int, window time.Duration, maxKeys int, clk clock.Clock, log *zap.Logger) *FixedWindowLimiter {
	if capacity <= 0 {
		capacity = 30
	}
	if window <= 0 {
		window = time.Minute
	}
	if maxKeys <= 0 {
		maxKeys = 10_000
	}
	return &FixedWindowLimiter{
		buckets:  map[string]*bucket{},
		capacity: capacity,
		window:   window,
		maxKeys:  maxKeys,
		clock:    clk,
		log:      log.Named("ratelimit"),
	}
}

// Allow consumes one token for the key, returning false when the window
// budget is exhausted.
func (l *FixedWindowLimiter) Allow(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		l.evictStalestLocked()
		b = &bucket{tokens: l.capacity, windowStarted: now}
		l.buckets[key] = b
	}

	if now.Sub(b.windowStarted) >= l.window {
		b.tokens = l.capacity
		b.windowStarted = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}

	l.log.Warn("request blocked", zap.String("key", key))
	return false
}

// evictStalestLocked drops the bucket with the oldest window start once
// the map hits maxKeys, bounding growth under many distinct keys.
func (l *FixedWindowLimiter) evictStalestLocked() {
	if len(l.buckets) < l.maxKeys {
		return
	}
	var stalestKey string
	var stalest time.Time
	for key, b := range l.buckets {
		if stalestKey == "" || b.windowStarted.Before(stalest) {
			stalestKey = key
			stalest = b.windowStarted
		}
	}
	if stalestKey != "" {
		delete(l.buckets, stalestKey)
	}
}
