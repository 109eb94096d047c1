// Package retry implements the structured retry policy design note from
// spec.md §9: a single configuration object (attempts, base, max, retryable
// predicate) rather than per-call decoration, grounded on the exponential
// backoff constants in
// original_source/gfw_pixetl/tiles/raster_src_tile.py's @retry decorator
// (stop_max_attempt_number=7, wait_exponential_multiplier=1000,
// wait_exponential_max=300000).
package retry

import (
	"context"
	"time"
)

// Policy describes an exponential backoff retry schedule: base * 2^k,
// capped at Max, for up to Attempts tries.
type Policy struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration

	// IsRetryable classifies an error as transient (worth retrying) or
	// terminal. A nil IsRetryable treats every error as retryable.
	IsRetryable func(error) bool
}

// DefaultPolicy is the retry policy spec.md §4.3 mandates for source reads:
// 1s * 2^k, max 300s, up to 7 attempts.
func DefaultPolicy(isRetryable func(error) bool) Policy {
	return Policy{
		Attempts:    7,
		Base:        1 * time.Second,
		Max:         300 * time.Second,
		IsRetryable: isRetryable,
	}
}

// backoff returns the delay before attempt k (0-indexed, k=0 is the first
// retry after the initial failed attempt).
func (p Policy) backoff(k int) time.Duration {
	d := p.Base << k
	if d <= 0 || d > p.Max { // overflow or cap
		return p.Max
	}
	return d
}

// Do runs fn, retrying per the policy until it succeeds, a non-retryable
// error is returned, attempts are exhausted, or ctx is cancelled.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if p.IsRetryable != nil && !p.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == p.Attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff(attempt)):
		}
	}
	return lastErr
}
