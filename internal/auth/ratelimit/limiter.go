// Package ratelimit provides fixed-window attempt counters for credential
// guessing defense. Unlike the per-route token buckets in pkg/httpx, these
// counters key on login identifiers and survive across instances when the
// redis backend is configured.
package ratelimit

import (
	"context"
	"time"
)

// Limiter counts attempts per key inside a fixed window.
type Limiter interface {
	// Allow records an attempt for key and reports whether it is within
	// budget. When denied, the returned duration says how long until the
	// window resets.
	Allow(ctx context.Context, key string, now time.Time) (bool, time.Duration, error)

	// Reset clears the counter for key, used after a successful
	// authentication so earlier failures stop counting.
	Reset(ctx context.Context, key string) error
}
