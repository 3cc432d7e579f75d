// Package ratelimit provides a token-bucket limiter backed by redis,
// with an in-process fallback for deployments without one.
package ratelimit

import (
	"context"
	"time"
)

// Result reports the outcome of a single Allow call.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter admits requests at a sustained rate with a burst allowance.
// Keys scope independent buckets (per org, per endpoint).
type Limiter interface {
	Allow(ctx context.Context, key string, rate float64, burst int) (Result, error)
}
