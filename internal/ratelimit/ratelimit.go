// Package ratelimit provides per-client rate limiting for the HTTP
// endpoints. A sliding-window limiter guards the login and public
// endpoints against abuse, and a concurrency limiter caps how many
// long-polls a single client IP may keep parked at once.
package ratelimit

import (
	"sync"
	"time"

	"github.com/chatkit/chatroom/internal/constants"
)

// PollLimiter caps the number of concurrently parked long-polls per
// client IP. Long-polls are held open indefinitely by design, so
// without a cap a single client could pin an unbounded number of
// server connections.
type PollLimiter struct {
	open     map[string]int // client IP -> parked poll count
	maxPerIP int
	mu       sync.RWMutex
}

// NewPollLimiter creates a poll concurrency limiter.
func NewPollLimiter(maxPerIP int) *PollLimiter {
	return &PollLimiter{
		open:     make(map[string]int),
		maxPerIP: maxPerIP,
	}
}

// Acquire reserves a poll slot for the client. Returns false if the
// client is already at its cap.
func (pl *PollLimiter) Acquire(clientIP string) bool {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	count := pl.open[clientIP]
	if count >= pl.maxPerIP {
		return false
	}

	pl.open[clientIP] = count + 1
	return true
}

// Release frees a poll slot for the client.
func (pl *PollLimiter) Release(clientIP string) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if count, ok := pl.open[clientIP]; ok {
		if count <= 1 {
			delete(pl.open, clientIP)
		} else {
			pl.open[clientIP] = count - 1
		}
	}
}

// Count returns the current parked poll count for the client.
func (pl *PollLimiter) Count(clientIP string) int {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	return pl.open[clientIP]
}

// RequestLimiter limits the rate of requests per key (client IP) using
// a sliding window.
type RequestLimiter struct {
	events map[string][]time.Time // key -> request timestamps
	window time.Duration
	limit  int
	mu     sync.RWMutex

	// Cleanup goroutine management
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	cleanupWg       sync.WaitGroup
}

// NewRequestLimiter creates a sliding-window rate limiter.
// window: time window for rate limiting (e.g. 1 minute)
// limit: maximum number of requests allowed in the window
func NewRequestLimiter(window time.Duration, limit int) *RequestLimiter {
	return &RequestLimiter{
		events:          make(map[string][]time.Time),
		window:          window,
		limit:           limit,
		cleanupInterval: constants.DefaultCleanupInterval,
		stopCleanup:     make(chan struct{}),
	}
}

// Allow checks if a request is allowed for the key.
// Returns true if allowed, false if the rate limit is exceeded.
func (rl *RequestLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	events := rl.events[key]

	// Drop events that fell out of the window.
	var recent []time.Time
	for _, t := range events {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= rl.limit {
		rl.events[key] = recent
		return false
	}

	recent = append(recent, now)
	rl.events[key] = recent

	return true
}

// RetryAfter returns the time in milliseconds until the next request
// is allowed for the key. Returns 0 if a request would be allowed now.
func (rl *RequestLimiter) RetryAfter(key string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	events := rl.events[key]
	if len(events) < rl.limit {
		return 0
	}

	now := time.Now()
	cutoff := now.Add(-rl.window)

	var oldestInWindow time.Time
	for _, t := range events {
		if t.After(cutoff) {
			if oldestInWindow.IsZero() || t.Before(oldestInWindow) {
				oldestInWindow = t
			}
		}
	}

	if oldestInWindow.IsZero() {
		return 0
	}

	retryAfter := oldestInWindow.Add(rl.window).Sub(now)
	if retryAfter < 0 {
		return 0
	}

	return int(retryAfter.Milliseconds())
}

// Reset clears the rate limit history for a key.
func (rl *RequestLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.events, key)
}

// Cleanup removes expired events to prevent the tracking map from
// growing without bound. Called periodically by the cleanup goroutine.
func (rl *RequestLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.window)

	for key, events := range rl.events {
		var recent []time.Time
		for _, t := range events {
			if t.After(cutoff) {
				recent = append(recent, t)
			}
		}

		if len(recent) == 0 {
			delete(rl.events, key)
		} else {
			rl.events[key] = recent
		}
	}
}

// StartCleanup starts a background goroutine that periodically removes
// expired events.
func (rl *RequestLimiter) StartCleanup() {
	rl.cleanupWg.Add(1)
	go func() {
		defer rl.cleanupWg.Done()
		ticker := time.NewTicker(rl.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-rl.stopCleanup:
				return
			}
		}
	}()
}

// StopCleanup stops the cleanup goroutine and waits for it to finish.
// Safe to call more than once.
func (rl *RequestLimiter) StopCleanup() {
	rl.stopOnce.Do(func() {
		close(rl.stopCleanup)
	})
	rl.cleanupWg.Wait()
}
