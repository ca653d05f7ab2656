package rest

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultRate is the proactive throttle rate in requests per second.
	DefaultRate = 5.0

	// DefaultBurst is the token bucket size.
	DefaultBurst = 5

	// MaxRetryAfter caps how long a single Retry-After is honoured.
	MaxRetryAfter = time.Minute

	// HeaderRetryAfter is the retry-after header (seconds or HTTP date).
	HeaderRetryAfter = "Retry-After"
)

// RateLimiter throttles requests to one provider host.
// Proactive: a token bucket. Reactive: after a 429 every caller waits until
// the provider's Retry-After has passed.
type RateLimiter struct {
	mu         sync.Mutex
	bucket     *rate.Limiter
	pauseUntil time.Time
}

// NewRateLimiter creates a limiter allowing perSecond requests with burst.
// A non-positive perSecond disables proactive throttling.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{bucket: rate.NewLimiter(limit, burst)}
}

// Wait blocks until it's safe to make a request.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	pauseUntil := r.pauseUntil
	r.mu.Unlock()

	if wait := time.Until(pauseUntil); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return r.bucket.Wait(ctx)
}

// Backoff records a Retry-After from resp and returns the delay.
// Returns 0 if resp is not a 429 or 503.
func (r *RateLimiter) Backoff(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return 0
	}

	delay := ParseRetryAfter(resp.Header.Get(HeaderRetryAfter), time.Now())
	if delay <= 0 {
		delay = time.Second
	}
	if delay > MaxRetryAfter {
		delay = MaxRetryAfter
	}

	r.mu.Lock()
	if until := time.Now().Add(delay); until.After(r.pauseUntil) {
		r.pauseUntil = until
	}
	r.mu.Unlock()

	return delay
}

// PausedUntil returns the end of the current reactive pause, if any.
func (r *RateLimiter) PausedUntil() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pauseUntil
}

// ParseRetryAfter parses a Retry-After value given in seconds or as an
// HTTP date. Returns 0 when absent or unparseable.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		return at.Sub(now)
	}
	return 0
}
