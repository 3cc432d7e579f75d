package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/smallops/dealdesk/internal/clock"
)

type bucket struct {
	tokens float64
	ts     time.Time
}

// MemoryLimiter is an in-process Limiter used when no redis address is
// configured. State is per instance, so limits are per replica.
type MemoryLimiter struct {
	clock clock.Clock

	mu      sync.Mutex
	buckets map[string]*bucket
}

func NewMemoryLimiter(clk clock.Clock) *MemoryLimiter {
	return &MemoryLimiter{
		clock:   clk,
		buckets: make(map[string]*bucket),
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, rate float64, burst int) (Result, error) {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(burst), ts: now}
		m.buckets[key] = b
	} else {
		delta := now.Sub(b.ts).Seconds()
		if delta < 0 {
			delta = 0
		}
		b.tokens += delta * rate
		if b.tokens > float64(burst) {
			b.tokens = float64(burst)
		}
		b.ts = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return Result{Allowed: true, Remaining: int(b.tokens)}, nil
	}

	result := Result{Remaining: 0}
	if needed := 1.0 - b.tokens; needed > 0 {
		result.RetryAfter = time.Duration(needed / rate * float64(time.Second))
	}
	return result, nil
}
