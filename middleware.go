package offers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Logical operations, used for hook dispatch, metrics labels and error
// context.
const (
	OpRegisterProduct = "RegisterProduct"
	OpGetOffers       = "GetOffers"
)

// RequestInfo is the mutable view of an outgoing call handed to before-phase
// hooks. Hooks may add headers or rewrite the body; they must not retain the
// struct past the call.
type RequestInfo struct {
	Operation string
	ProductID string
	Method    string
	URL       string
	Header    http.Header
	Body      []byte
	RequestID string
}

// ResponseInfo is the read view handed to after-phase hooks once a response
// is available.
type ResponseInfo struct {
	Operation  string
	ProductID  string
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempt    int
	Duration   time.Duration
	RequestID  string
}

// Hook is a value implementing at least one of RequestHook, ResponseHook or
// ErrorHook. Hooks run in registration order for the before phase AND in the
// same order for the after phase; ordering is part of the contract. A hook
// error aborts the call as a pipeline error and is never retried.
type Hook interface{}

// RequestHook runs before the request is sent.
type RequestHook interface {
	BeforeRequest(ctx context.Context, req *RequestInfo) error
}

// ResponseHook runs after a response is received.
type ResponseHook interface {
	AfterResponse(ctx context.Context, resp *ResponseInfo) error
}

// ErrorHook observes a call's terminal failure. It cannot alter control
// flow.
type ErrorHook interface {
	OnError(ctx context.Context, req *RequestInfo, err error)
}

func hookImplementsCapability(h Hook) bool {
	switch h.(type) {
	case RequestHook, ResponseHook, ErrorHook:
		return true
	}
	return false
}

// LoggingHook logs every request and response through the client's Logger
// interface.
type LoggingHook struct {
	Logger Logger
}

// NewLoggingHook returns a hook logging to logger.
func NewLoggingHook(logger Logger) *LoggingHook {
	return &LoggingHook{Logger: logger}
}

// BeforeRequest implements RequestHook.
func (h *LoggingHook) BeforeRequest(_ context.Context, req *RequestInfo) error {
	if h.Logger != nil {
		h.Logger.Info("request",
			"requestID", req.RequestID,
			"operation", req.Operation,
			"method", req.Method,
			"url", req.URL,
		)
	}
	return nil
}

// AfterResponse implements ResponseHook.
func (h *LoggingHook) AfterResponse(_ context.Context, resp *ResponseInfo) error {
	if h.Logger != nil {
		h.Logger.Info("response",
			"requestID", resp.RequestID,
			"operation", resp.Operation,
			"status", resp.StatusCode,
			"attempt", resp.Attempt,
			"duration", resp.Duration,
		)
	}
	return nil
}

// OnError implements ErrorHook.
func (h *LoggingHook) OnError(_ context.Context, req *RequestInfo, err error) {
	if h.Logger != nil {
		h.Logger.Error("request failed",
			"requestID", req.RequestID,
			"operation", req.Operation,
			"error", err.Error(),
		)
	}
}

// CacheInvalidationHook evicts a product's cached offers after the product
// is (re)registered, so the next cached read fetches fresh data. Register it
// after any logging hook that should observe the pre-invalidation state.
type CacheInvalidationHook struct {
	cache Cache
}

// NewCacheInvalidationHook returns a hook evicting entries from cache.
func NewCacheInvalidationHook(cache Cache) *CacheInvalidationHook {
	return &CacheInvalidationHook{cache: cache}
}

// AfterResponse implements ResponseHook. Only successful registrations
// trigger eviction.
func (h *CacheInvalidationHook) AfterResponse(_ context.Context, resp *ResponseInfo) error {
	if h.cache == nil || resp.Operation != OpRegisterProduct || resp.StatusCode != http.StatusCreated {
		return nil
	}
	var result RegistrationResult
	if err := json.Unmarshal(resp.Body, &result); err != nil || result.ID == "" {
		// A malformed registration body is the executor's problem, not the
		// hook's.
		return nil
	}
	h.cache.Delete(OffersCacheKey(result.ID))
	return nil
}

// HeaderInjectionHook adds a fixed header set to every outgoing request,
// e.g. correlation or tenant headers.
type HeaderInjectionHook struct {
	Headers map[string]string
}

// BeforeRequest implements RequestHook.
func (h *HeaderInjectionHook) BeforeRequest(_ context.Context, req *RequestInfo) error {
	for key, value := range h.Headers {
		req.Header.Set(key, value)
	}
	return nil
}
