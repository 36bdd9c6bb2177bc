// Package ratelimit provides a sliding-window rate limiter with pluggable
// storage and HTTP middleware. The middleware fails open: a broken store
// must not take authentication down with it.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidLimit    = errors.New("ratelimit: limit must be positive")
	ErrInvalidInterval = errors.New("ratelimit: window must be positive")
	ErrKeyRequired     = errors.New("ratelimit: key is required")
	ErrStoreRequired   = errors.New("ratelimit: store is required")
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long the caller should wait; zero when allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed {
		return 0
	}
	return time.Until(r.ResetAt)
}

// Store records request timestamps per key inside a sliding window.
type Store interface {
	// Record atomically counts the timestamps inside the window, appends
	// the new one when the count is under limit, and returns whether it
	// was appended along with the resulting count.
	Record(ctx context.Context, key string, ts time.Time, window time.Duration, limit int) (allowed bool, count int64, err error)
}

// SlidingWindow tracks individual request timestamps inside a moving
// window, trading some storage for accuracy at window edges.
type SlidingWindow struct {
	store  Store
	limit  int
	window time.Duration
}

func NewSlidingWindow(store Store, limit int, window time.Duration) (*SlidingWindow, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if window <= 0 {
		return nil, ErrInvalidInterval
	}
	return &SlidingWindow{store: store, limit: limit, window: window}, nil
}

// Allow checks and consumes one slot for key.
func (sw *SlidingWindow) Allow(ctx context.Context, key string) (*Result, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}

	now := time.Now()
	allowed, count, err := sw.store.Record(ctx, key, now, sw.window, sw.limit)
	if err != nil {
		return nil, err
	}

	return &Result{
		Allowed:   allowed,
		Limit:     sw.limit,
		Remaining: max(0, sw.limit-int(count)),
		ResetAt:   now.Add(sw.window),
	}, nil
}
