package offers

import (
	"fmt"
	"strings"
	"time"
)

// Option configures a Client at construction.
type Option func(*Client)

// WithTransport injects a fully built transport, bypassing the kind
// selector. Useful for tests and custom backends.
func WithTransport(transport Transport) Option {
	return func(c *Client) {
		c.transport = transport
	}
}

// WithTransportKind selects which backend NewTransport should build.
// Overrides the settings value.
func WithTransportKind(kind TransportKind) Option {
	return func(c *Client) {
		c.transportKind = kind
	}
}

// WithTokenStore replaces the default disk-backed token store.
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) {
		c.tokenStore = store
	}
}

// WithRetryPolicy replaces the default retry policy entirely.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.retryPolicy = policy
	}
}

// WithMaxAttempts sets the total attempt count for the default retry policy.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		c.maxAttempts = n
	}
}

// WithInitialBackoff sets the first retry delay for the default policy.
func WithInitialBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.initialBackoff = d
	}
}

// WithMaxBackoff caps retry delays for the default policy.
func WithMaxBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.maxBackoff = d
	}
}

// WithBackoffMultiplier sets the growth factor for the default policy.
func WithBackoffMultiplier(f float64) Option {
	return func(c *Client) {
		c.multiplier = f
	}
}

// WithJitter sets the jitter factor (clamped to [0, 1]) for the default
// policy.
func WithJitter(f float64) Option {
	return func(c *Client) {
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		c.jitter = f
	}
}

// WithCache replaces the default in-memory offers cache.
func WithCache(cache Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithCacheTTL overrides the offers cache TTL from settings.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = ttl
	}
}

// WithHooks appends hooks to the pipeline. Registration order is execution
// order for both the before and after phases.
func WithHooks(hooks ...Hook) Option {
	return func(c *Client) {
		c.hooks = append(c.hooks, hooks...)
	}
}

// WithRateLimiter gates outgoing requests through a token bucket.
func WithRateLimiter(maxTokens int, refillRate time.Duration) Option {
	return func(c *Client) {
		c.limiter = NewRateLimiter(maxTokens, refillRate)
	}
}

// WithDeduplication coalesces concurrent identical offer fetches.
func WithDeduplication() Option {
	return func(c *Client) {
		c.dedup = NewDeduplicationTracker()
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithLogger sets the structured logger. Nil disables logging.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRequestIDGenerator replaces the UUID request ID generator.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		c.requestIDGen = gen
	}
}

// validateConfiguration checks the assembled client before first use.
func (c *Client) validateConfiguration() error {
	var problems []string

	if c.maxAttempts <= 0 {
		problems = append(problems, "max attempts must be positive")
	}
	if c.initialBackoff <= 0 {
		problems = append(problems, "initial backoff must be positive")
	}
	if c.maxBackoff < c.initialBackoff {
		problems = append(problems, "max backoff must be at least the initial backoff")
	}
	if c.multiplier <= 0 {
		problems = append(problems, "backoff multiplier must be positive")
	}
	if c.cacheTTL <= 0 {
		problems = append(problems, "cache TTL must be positive")
	}
	if c.requestIDGen == nil {
		problems = append(problems, "request ID generator must not be nil")
	}
	for i, h := range c.hooks {
		if !hookImplementsCapability(h) {
			problems = append(problems, fmt.Sprintf("hook %d implements no hook capability", i))
		}
	}

	if len(problems) > 0 {
		return &Error{
			Kind:      KindValidation,
			Message:   "invalid client configuration: " + strings.Join(problems, "; "),
			Timestamp: time.Now(),
		}
	}
	return nil
}
