package offers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bntmzu/offers-go/internal/backoff"
)

// RetryPolicy decides whether a failed attempt is retried and how long to
// wait first. attempt is the zero-based index of the attempt that just
// failed. The policy only ever sees transport errors and responses; the 401
// refresh-and-retry path is handled by the executor on a separate budget.
type RetryPolicy interface {
	ShouldRetry(resp *Response, err error, attempt int) (time.Duration, bool)
}

// DefaultRetryPolicy retries transient failures (network errors, timeouts,
// 5xx, 429) with exponential backoff and jitter, honoring Retry-After when
// the server provides one.
type DefaultRetryPolicy struct {
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	multiplier     float64
	jitter         float64
	strategy       backoff.Strategy
}

// NewDefaultRetryPolicy builds the default policy. maxAttempts is the total
// number of attempts, not the number of retries.
func NewDefaultRetryPolicy(maxAttempts int, initial, max time.Duration, multiplier, jitter float64) *DefaultRetryPolicy {
	return &DefaultRetryPolicy{
		maxAttempts:    maxAttempts,
		initialBackoff: initial,
		maxBackoff:     max,
		multiplier:     multiplier,
		jitter:         jitter,
		strategy:       backoff.ExponentialJitter{},
	}
}

// WithStrategy swaps the backoff strategy and returns the policy for
// chaining.
func (p *DefaultRetryPolicy) WithStrategy(s backoff.Strategy) *DefaultRetryPolicy {
	p.strategy = s
	return p
}

// MaxAttempts returns the configured total attempt count.
func (p *DefaultRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry implements RetryPolicy.
func (p *DefaultRetryPolicy) ShouldRetry(resp *Response, err error, attempt int) (time.Duration, bool) {
	if attempt+1 >= p.maxAttempts {
		return 0, false
	}

	retry := false
	var delay time.Duration

	if err != nil {
		retry = IsTransient(err)
	} else if resp != nil {
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			retry = true
			delay = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
	}

	if !retry {
		return 0, false
	}
	if delay == 0 {
		delay = p.strategy.Delay(attempt, p.initialBackoff, p.maxBackoff, p.multiplier, p.jitter)
	}
	return delay, true
}

// parseRetryAfter parses a Retry-After header in either delay-seconds or
// HTTP-date form. Returns 0 when absent or unusable. Delays are capped at
// one hour.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds > 0 {
			delay := time.Duration(seconds) * time.Second
			if delay > time.Hour {
				delay = time.Hour
			}
			return delay
		}
		return 0
	}

	if t, err := http.ParseTime(value); err == nil {
		delay := time.Until(t)
		if delay > 0 && delay <= time.Hour {
			return delay
		}
	}
	return 0
}
