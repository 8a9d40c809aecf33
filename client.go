package offers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Client is the request executor for the offers service. It composes the
// token manager, transport strategy, retry policy, cache and hook pipeline
// into the public operations. Safe for concurrent use; one Client shares one
// token manager and one transport across all calls.
type Client struct {
	settings Settings
	baseURL  string
	timeout  time.Duration

	transport     Transport
	transportKind TransportKind
	tokens        *TokenManager
	tokenStore    TokenStore

	retryPolicy    RetryPolicy
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	multiplier     float64
	jitter         float64

	cache    Cache
	cacheTTL time.Duration

	hooks []Hook

	limiter      *RateLimiter
	dedup        *DeduplicationTracker
	metrics      *MetricsCollector
	logger       Logger
	requestIDGen func() string

	closeOnce sync.Once
	closeErr  error
}

// New builds a Client from settings and functional options. Settings are
// read once; the transport backend and token store are fixed at
// construction.
func New(settings Settings, options ...Option) (*Client, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		settings:       settings,
		baseURL:        strings.TrimRight(settings.BaseURL, "/"),
		timeout:        settings.Timeout,
		transportKind:  settings.Transport,
		maxAttempts:    3,
		initialBackoff: 500 * time.Millisecond,
		maxBackoff:     5 * time.Second,
		multiplier:     2.0,
		jitter:         0.1,
		cacheTTL:       settings.OffersCacheTTL,
		requestIDGen:   uuid.NewString,
	}

	for _, option := range options {
		option(c)
	}

	if c.transport == nil {
		transport, err := NewTransport(c.transportKind, c.timeout)
		if err != nil {
			return nil, err
		}
		c.transport = transport
	}
	if c.tokenStore == nil {
		c.tokenStore = NewDiskTokenStore(settings.TokenCacheDir)
	}
	if c.cache == nil {
		c.cache = NewInMemoryCache()
	}
	if c.retryPolicy == nil {
		c.retryPolicy = NewDefaultRetryPolicy(c.maxAttempts, c.initialBackoff, c.maxBackoff, c.multiplier, c.jitter)
	}

	c.tokens = NewTokenManager(settings, c.tokenStore)
	c.tokens.logger = c.logger
	c.tokens.metrics = c.metrics

	if err := c.validateConfiguration(); err != nil {
		return nil, err
	}
	return c, nil
}

// Tokens exposes the client's token manager, e.g. for diagnostics.
func (c *Client) Tokens() *TokenManager {
	return c.tokens
}

// RegisterProduct registers a product and returns its assigned identifier.
// The write path never touches the offers cache directly; eviction is the
// CacheInvalidationHook's job.
func (c *Client) RegisterProduct(ctx context.Context, product Product) (*RegistrationResult, error) {
	body, err := json.Marshal(product)
	if err != nil {
		return nil, &Error{Kind: KindPermanent, Message: "encoding product failed", Cause: err, Op: OpRegisterProduct, Timestamp: time.Now()}
	}

	call := &callState{
		op:        OpRegisterProduct,
		productID: product.ID,
		method:    http.MethodPost,
		url:       c.baseURL + "/api/v1/products/register",
		body:      body,
	}
	resp, err := c.execute(ctx, call)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusCreated:
		var result RegistrationResult
		if err := json.Unmarshal(resp.Body, &result); err != nil {
			return nil, c.permanentError(call, resp, "malformed registration response", err)
		}
		return &result, nil
	case http.StatusConflict:
		return nil, c.permanentError(call, resp, "product already registered", nil)
	case http.StatusUnprocessableEntity:
		return nil, c.validationResponseError(call, resp)
	default:
		return nil, c.permanentError(call, resp, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}
}

// GetOffers fetches the current offer listing for a product, bypassing the
// cache. Concurrent fetches for the same product coalesce when
// deduplication is enabled.
func (c *Client) GetOffers(ctx context.Context, productID string) ([]Offer, error) {
	if c.dedup == nil {
		return c.fetchOffers(ctx, productID)
	}

	key := OffersCacheKey(productID)
	entry, owner := c.dedup.begin(key)
	if !owner {
		c.metrics.RecordDeduplicationHit(OpGetOffers)
		return entry.wait(ctx)
	}
	offers, err := c.fetchOffers(ctx, productID)
	c.dedup.complete(key, offers, err)
	return offers, err
}

// GetOffersCached serves the offer listing from the cache when a live entry
// exists, fetching and storing it otherwise. Cache failures degrade to a
// fetch, never to a call failure.
func (c *Client) GetOffersCached(ctx context.Context, productID string) ([]Offer, error) {
	key := OffersCacheKey(productID)
	if offers, ok := c.cache.Get(key); ok {
		c.metrics.RecordCacheHit(OpGetOffers)
		if c.logger != nil {
			c.logger.Debug("offers cache hit", "productID", productID)
		}
		return offers, nil
	}
	c.metrics.RecordCacheMiss(OpGetOffers)

	offers, err := c.GetOffers(ctx, productID)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, offers, c.cacheTTL)
	if mem, ok := c.cache.(*InMemoryCache); ok {
		c.metrics.RecordCacheSize(mem.Len())
	}
	return offers, nil
}

// InvalidateOffers evicts a product's cached offer listing.
func (c *Client) InvalidateOffers(productID string) {
	c.cache.Delete(OffersCacheKey(productID))
}

// Close releases transport resources. Idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.transport.Close()
	})
	return c.closeErr
}

func (c *Client) fetchOffers(ctx context.Context, productID string) ([]Offer, error) {
	call := &callState{
		op:        OpGetOffers,
		productID: productID,
		method:    http.MethodGet,
		url:       c.baseURL + "/api/v1/products/" + url.PathEscape(productID) + "/offers",
	}
	resp, err := c.execute(ctx, call)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var offers []Offer
		if err := json.Unmarshal(resp.Body, &offers); err != nil {
			return nil, c.permanentError(call, resp, "malformed offers response", err)
		}
		return offers, nil
	case http.StatusNotFound:
		return nil, c.permanentError(call, resp, "product not registered", nil)
	case http.StatusUnprocessableEntity:
		return nil, c.validationResponseError(call, resp)
	default:
		return nil, c.permanentError(call, resp, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}
}

// callState tracks one logical call across its attempts. It lives only for
// the call's duration.
type callState struct {
	op        string
	productID string
	method    string
	url       string
	body      []byte

	requestID string
	attempt   int
	startedAt time.Time
}

// execute runs one logical call: before hooks, then the authenticated send
// inside the retry loop, then after hooks. A 401 triggers exactly one forced
// refresh and one extra attempt on a budget independent of the transient
// one; a second consecutive 401 surfaces as an authentication error.
// Responses with permanent statuses are returned for the operation layer to
// map.
func (c *Client) execute(ctx context.Context, call *callState) (*Response, error) {
	call.startedAt = time.Now()
	call.requestID = c.requestIDGen()

	c.metrics.RecordRequestStart(call.op)
	defer c.metrics.RecordRequestEnd(call.op)

	reqInfo := &RequestInfo{
		Operation: call.op,
		ProductID: call.productID,
		Method:    call.method,
		URL:       call.url,
		Header:    http.Header{},
		Body:      call.body,
		RequestID: call.requestID,
	}
	if len(call.body) > 0 {
		reqInfo.Header.Set("Content-Type", "application/json")
	}

	for _, h := range c.hooks {
		if rh, ok := h.(RequestHook); ok {
			if err := rh.BeforeRequest(ctx, reqInfo); err != nil {
				perr := c.pipelineError(call, err)
				c.runErrorHooks(ctx, reqInfo, perr)
				return nil, perr
			}
		}
	}

	authRetried := false
	for {
		if c.limiter != nil {
			if !c.limiter.Allow() {
				err := &Error{
					Kind:      KindRateLimit,
					Message:   "local rate limit exceeded",
					Op:        call.op,
					Method:    reqInfo.Method,
					URL:       reqInfo.URL,
					RequestID: call.requestID,
					Timestamp: time.Now(),
				}
				c.metrics.RecordError(KindRateLimit, call.op)
				c.runErrorHooks(ctx, reqInfo, err)
				return nil, err
			}
			c.metrics.RecordRateLimiterTokens(c.limiter.Tokens())
		}

		token, err := c.tokens.Token(ctx)
		if err != nil {
			aerr := c.ensureAuthError(call, err)
			c.metrics.RecordError(KindAuthentication, call.op)
			c.runErrorHooks(ctx, reqInfo, aerr)
			return nil, aerr
		}

		req := &Request{
			Method: reqInfo.Method,
			URL:    reqInfo.URL,
			Header: reqInfo.Header.Clone(),
			Body:   reqInfo.Body,
		}
		req.Header.Set("Authorization", "Bearer "+token.Value)

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.transport.Do(attemptCtx, req)
		cancel()

		if err == nil && resp.StatusCode == http.StatusUnauthorized {
			if !authRetried {
				authRetried = true
				if c.logger != nil {
					c.logger.Info("access token rejected, forcing refresh", "requestID", call.requestID, "operation", call.op)
				}
				if _, rerr := c.tokens.ForceRefresh(ctx); rerr != nil {
					aerr := c.ensureAuthError(call, rerr)
					c.metrics.RecordError(KindAuthentication, call.op)
					c.runErrorHooks(ctx, reqInfo, aerr)
					return nil, aerr
				}
				// The refreshed attempt runs outside the transient retry
				// budget: attempt is not advanced.
				continue
			}
			aerr := &Error{
				Kind:       KindAuthentication,
				Message:    "access token rejected again after refresh",
				Op:         call.op,
				Method:     reqInfo.Method,
				URL:        reqInfo.URL,
				StatusCode: http.StatusUnauthorized,
				Attempt:    call.attempt,
				RequestID:  call.requestID,
				Timestamp:  time.Now(),
				Duration:   time.Since(call.startedAt),
			}
			c.metrics.RecordError(KindAuthentication, call.op)
			c.runErrorHooks(ctx, reqInfo, aerr)
			return nil, aerr
		}

		if err != nil || isTransientStatus(resp.StatusCode) {
			delay, retry := c.retryPolicy.ShouldRetry(resp, err, call.attempt)
			if retry {
				c.metrics.RecordRetry(call.op, call.attempt+1)
				if c.logger != nil {
					c.logger.Info("retrying after transient failure",
						"requestID", call.requestID,
						"operation", call.op,
						"attempt", call.attempt+1,
						"backoff", delay,
					)
				}
				if serr := sleepContext(ctx, delay); serr != nil {
					werr := c.transientError(call, "call canceled during backoff", serr, 0)
					c.runErrorHooks(ctx, reqInfo, werr)
					return nil, werr
				}
				call.attempt++
				continue
			}

			var terr *Error
			if err != nil {
				terr = c.ensureTransientError(call, err)
			} else {
				terr = c.transientError(call, "upstream kept failing", nil, resp.StatusCode)
			}
			c.metrics.RecordError(terr.Kind, call.op)
			c.runErrorHooks(ctx, reqInfo, terr)
			return nil, terr
		}

		respInfo := &ResponseInfo{
			Operation:  call.op,
			ProductID:  call.productID,
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       resp.Body,
			Attempt:    call.attempt,
			Duration:   time.Since(call.startedAt),
			RequestID:  call.requestID,
		}
		for _, h := range c.hooks {
			if rh, ok := h.(ResponseHook); ok {
				if err := rh.AfterResponse(ctx, respInfo); err != nil {
					perr := c.pipelineError(call, err)
					c.runErrorHooks(ctx, reqInfo, perr)
					return nil, perr
				}
			}
		}

		c.metrics.RecordRequest(call.op, resp.StatusCode, time.Since(call.startedAt))
		return resp, nil
	}
}

func (c *Client) runErrorHooks(ctx context.Context, reqInfo *RequestInfo, err error) {
	for _, h := range c.hooks {
		if eh, ok := h.(ErrorHook); ok {
			eh.OnError(ctx, reqInfo, err)
		}
	}
}

// ensureTransientError annotates a transport error with call context without
// reclassifying it.
func (c *Client) ensureTransientError(call *callState, err error) *Error {
	if e, ok := err.(*Error); ok {
		e.Op = call.op
		e.Attempt = call.attempt
		e.MaxAttempts = c.maxAttempts
		e.RequestID = call.requestID
		e.Duration = time.Since(call.startedAt)
		return e
	}
	return c.transientError(call, "request failed", err, 0)
}

func (c *Client) ensureAuthError(call *callState, err error) *Error {
	if e, ok := err.(*Error); ok {
		e.Op = call.op
		if e.RequestID == "" {
			e.RequestID = call.requestID
		}
		return e
	}
	return &Error{
		Kind:      KindAuthentication,
		Message:   "token resolution failed",
		Cause:     err,
		Op:        call.op,
		RequestID: call.requestID,
		Timestamp: time.Now(),
		Duration:  time.Since(call.startedAt),
	}
}

func (c *Client) transientError(call *callState, message string, cause error, status int) *Error {
	return &Error{
		Kind:        KindTransient,
		Message:     message,
		Cause:       cause,
		Op:          call.op,
		Method:      call.method,
		URL:         call.url,
		StatusCode:  status,
		Attempt:     call.attempt,
		MaxAttempts: c.maxAttempts,
		RequestID:   call.requestID,
		Timestamp:   time.Now(),
		Duration:    time.Since(call.startedAt),
	}
}

func (c *Client) permanentError(call *callState, resp *Response, message string, cause error) *Error {
	return &Error{
		Kind:        KindPermanent,
		Message:     message,
		Cause:       cause,
		Op:          call.op,
		Method:      call.method,
		URL:         call.url,
		StatusCode:  resp.StatusCode,
		Attempt:     call.attempt,
		MaxAttempts: c.maxAttempts,
		RequestID:   call.requestID,
		Timestamp:   time.Now(),
		Duration:    time.Since(call.startedAt),
	}
}

func (c *Client) validationResponseError(call *callState, resp *Response) *Error {
	var ve validationError
	_ = json.Unmarshal(resp.Body, &ve)
	err := c.permanentError(call, resp, "validation failed", nil)
	err.Detail = ve.Detail
	return err
}

func (c *Client) pipelineError(call *callState, cause error) *Error {
	return &Error{
		Kind:      KindPipeline,
		Message:   "hook failed",
		Cause:     cause,
		Op:        call.op,
		Method:    call.method,
		URL:       call.url,
		Attempt:   call.attempt,
		RequestID: call.requestID,
		Timestamp: time.Now(),
		Duration:  time.Since(call.startedAt),
	}
}

func isTransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
