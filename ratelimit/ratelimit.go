// Package ratelimit bounds how often an identity may attempt TOTP
// verification. The algorithm is a fixed-window counter: cheap, predictable,
// and sufficient to blunt brute force against a 6-digit code space. Bursts
// across a window boundary can briefly reach twice the nominal rate, an
// accepted property of the algorithm.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Limiter is the interface rate limiting implementations satisfy.
type Limiter interface {
	// Allow checks if the request should be allowed based on the key and
	// rate limit. Remaining indicates how many requests are left in the
	// current window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int, err error)

	// Reset clears the rate limit counter for the given key.
	Reset(ctx context.Context, key string) error
}

// LimitError is returned when a request is rate limited.
type LimitError struct {
	RetryAfter time.Duration
	Remaining  int
	Message    string
}

func (e *LimitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("rate limit exceeded, retry after %v", e.RetryAfter)
}

// IsLimitError checks if an error is a rate limit error.
func IsLimitError(err error) bool {
	var le *LimitError
	return errors.As(err, &le)
}

// AsLimitError extracts a LimitError from err if possible.
func AsLimitError(err error) (*LimitError, bool) {
	var le *LimitError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

type fixedWindowEntry struct {
	count       int
	windowStart time.Time
}

// FixedWindow is the in-memory fixed window limiter. The first request for
// a key opens a window; requests inside it count against the limit; a
// request arriving at or after windowStart+window opens a fresh window with
// count 1 regardless of the prior count.
type FixedWindow struct {
	mu      sync.Mutex
	entries map[string]*fixedWindowEntry
	now     func() time.Time
}

// NewFixedWindow creates an in-memory fixed window rate limiter.
func NewFixedWindow() *FixedWindow {
	return &FixedWindow{
		entries: make(map[string]*fixedWindowEntry),
		now:     time.Now,
	}
}

func (r *FixedWindow) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, exists := r.entries[key]

	// A full window elapsed since it opened: start over.
	if !exists || now.Sub(entry.windowStart) >= window {
		r.entries[key] = &fixedWindowEntry{count: 1, windowStart: now}
		return true, limit - 1, nil
	}

	if entry.count >= limit {
		return false, 0, nil
	}

	entry.count++
	return true, limit - entry.count, nil
}

func (r *FixedWindow) Reset(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
	return nil
}

// Janitor starts a background sweep dropping entries whose window closed
// more than maxIdle ago, so keys that stop arriving do not accumulate.
// The returned stop function ends the sweep and may be called more than
// once.
func (r *FixedWindow) Janitor(interval, maxIdle time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				r.sweep(maxIdle)
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

func (r *FixedWindow) sweep(maxIdle time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for key, entry := range r.entries {
		if now.Sub(entry.windowStart) > maxIdle {
			delete(r.entries, key)
		}
	}
}
