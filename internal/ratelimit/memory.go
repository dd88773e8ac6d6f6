package ratelimit

import (
	"context"
	"sync"
	"time"
)

// bucket tracks one user's command count within the current second.
type bucket struct {
	windowSec int64
	used      int
}

// MemoryLimiter is the in-process fallback backend. It throttles per-user
// chat commands in one-second windows and is used whenever Redis is not
// configured or the breaker has tripped.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewMemoryLimiter constructs a MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{buckets: make(map[string]*bucket)}
}

// Allow counts one command against the user's current window.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, now time.Time) (Result, error) {
	if limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	sec := now.Unix()
	reset := time.Unix(sec+1, 0).UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.buckets[key]
	if b == nil || b.windowSec != sec {
		b = &bucket{windowSec: sec}
		l.buckets[key] = b
	}
	if b.used >= limit {
		return Result{Allowed: false, Remaining: 0, Reset: reset}, nil
	}
	b.used++
	return Result{Allowed: true, Remaining: limit - b.used, Reset: reset}, nil
}
