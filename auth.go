package offers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bntmzu/offers-go/internal/backoff"
)

const (
	// tokenSafetyMargin keeps a token from being presented when it is about
	// to expire mid-flight.
	tokenSafetyMargin = 10 * time.Second
	// accessTokenTTL is the upstream's fixed access token lifetime; the
	// exchange response does not carry an expiry.
	accessTokenTTL = 5 * time.Minute

	authPath = "/api/v1/auth"

	exchangeMaxAttempts  = 3
	exchangeInitialDelay = 1 * time.Second
	exchangeMaxDelay     = 5 * time.Second
)

// refreshCall is one in-flight token exchange shared by all concurrent
// callers. A canceled waiter stops waiting on its own; the exchange and the
// other waiters proceed.
type refreshCall struct {
	mu    sync.Mutex
	token AccessToken
	err   error
	done  chan struct{}
}

func (c *refreshCall) wait(ctx context.Context) (AccessToken, error) {
	select {
	case <-c.done:
		c.mu.Lock()
		token, err := c.token, c.err
		c.mu.Unlock()
		return token, err
	case <-ctx.Done():
		return AccessToken{}, ctx.Err()
	}
}

// TokenManager owns the access token: it serves cached tokens, refreshes
// them single-flight when they near expiry, and mirrors every refresh to the
// TokenStore. Safe for concurrent use.
type TokenManager struct {
	refreshToken string
	authURL      string
	store        TokenStore
	httpClient   *http.Client
	logger       Logger
	metrics      *MetricsCollector

	exchangeAttempts int
	exchangeInitial  time.Duration
	exchangeMax      time.Duration
	backoffStrategy  backoff.Strategy

	mu      sync.Mutex
	token   AccessToken
	loaded  bool
	refresh *refreshCall
}

// NewTokenManager builds a manager for the given settings. store may be nil,
// in which case tokens live only in memory.
func NewTokenManager(settings Settings, store TokenStore) *TokenManager {
	return &TokenManager{
		refreshToken:     settings.RefreshToken,
		authURL:          strings.TrimRight(settings.BaseURL, "/") + authPath,
		store:            store,
		httpClient:       &http.Client{Timeout: settings.Timeout},
		exchangeAttempts: exchangeMaxAttempts,
		exchangeInitial:  exchangeInitialDelay,
		exchangeMax:      exchangeMaxDelay,
		backoffStrategy:  backoff.ExponentialJitter{},
	}
}

// Token returns an access token valid for at least the safety margin,
// refreshing it first when necessary. Concurrent callers needing a refresh
// converge on one exchange.
func (m *TokenManager) Token(ctx context.Context) (AccessToken, error) {
	m.mu.Lock()
	m.loadOnceLocked()
	if m.token.Valid(tokenSafetyMargin) {
		token := m.token
		m.mu.Unlock()
		return token, nil
	}
	call := m.refreshLocked()
	m.mu.Unlock()
	return call.wait(ctx)
}

// ForceRefresh unconditionally exchanges the refresh token for a new access
// token, joining any exchange already in flight.
func (m *TokenManager) ForceRefresh(ctx context.Context) (AccessToken, error) {
	m.mu.Lock()
	call := m.refreshLocked()
	m.mu.Unlock()
	return call.wait(ctx)
}

// loadOnceLocked consults the store the first time the manager is used. Any
// load failure means "no cached token".
func (m *TokenManager) loadOnceLocked() {
	if m.loaded {
		return
	}
	m.loaded = true
	if m.store == nil {
		return
	}
	token, ok, err := m.store.Load()
	if err != nil {
		if m.logger != nil {
			m.logger.Debug("token store load failed, starting fresh", "error", err.Error())
		}
		return
	}
	if ok && token.Valid(tokenSafetyMargin) {
		if m.logger != nil {
			m.logger.Debug("reusing persisted access token", "expiresAt", token.ExpiresAt)
		}
		m.token = token
	}
}

func (m *TokenManager) refreshLocked() *refreshCall {
	if m.refresh != nil {
		return m.refresh
	}
	call := &refreshCall{done: make(chan struct{})}
	m.refresh = call
	go m.runRefresh(call)
	return call
}

// runRefresh performs the exchange on its own context so caller cancellation
// never aborts a refresh other waiters depend on.
func (m *TokenManager) runRefresh(call *refreshCall) {
	token, err := m.exchange(context.Background())

	m.mu.Lock()
	if err == nil {
		m.token = token
	}
	m.refresh = nil
	m.mu.Unlock()

	if err == nil {
		m.metrics.RecordTokenRefresh("success")
		if m.store != nil {
			if saveErr := m.store.Save(token); saveErr != nil {
				if m.logger != nil {
					m.logger.Warn("failed to persist access token", "error", saveErr.Error())
				}
			}
		}
	} else {
		m.metrics.RecordTokenRefresh("failure")
	}

	call.mu.Lock()
	call.token = token
	call.err = err
	call.mu.Unlock()
	close(call.done)
}

// exchange posts the refresh token to the auth endpoint with its own bounded
// retry loop. A 401 is a definitive credential rejection and is never
// retried; everything else is retried with exponential backoff up to the
// attempt limit.
func (m *TokenManager) exchange(ctx context.Context) (AccessToken, error) {
	if strings.TrimSpace(m.refreshToken) == "" {
		return AccessToken{}, m.authError("refresh token is missing or empty", nil, 0, 0)
	}

	var lastErr error
	for attempt := 0; attempt < m.exchangeAttempts; attempt++ {
		if attempt > 0 {
			delay := m.backoffStrategy.Delay(attempt-1, m.exchangeInitial, m.exchangeMax, 2.0, 0.1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return AccessToken{}, m.authError("token exchange canceled", ctx.Err(), attempt, 0)
			}
		}

		token, retryable, err := m.exchangeOnce(ctx)
		if err == nil {
			if m.logger != nil {
				m.logger.Debug("new access token acquired", "expiresAt", token.ExpiresAt)
			}
			return token, nil
		}
		if !retryable {
			return AccessToken{}, err
		}
		lastErr = err
	}
	if authErr, ok := lastErr.(*Error); ok {
		authErr.Attempt = m.exchangeAttempts - 1
		authErr.MaxAttempts = m.exchangeAttempts
		return AccessToken{}, authErr
	}
	return AccessToken{}, m.authError("token exchange failed", lastErr, m.exchangeAttempts-1, 0)
}

func (m *TokenManager) exchangeOnce(ctx context.Context) (AccessToken, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.authURL, bytes.NewReader(nil))
	if err != nil {
		return AccessToken{}, false, m.authError("building token exchange request failed", err, 0, 0)
	}
	// The upstream expects the refresh token in a literal "Bearer" header.
	req.Header.Set("Bearer", m.refreshToken)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return AccessToken{}, true, m.authError("token exchange endpoint unreachable", err, 0, 0)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusCreated:
		var parsed authResponse
		if err := json.Unmarshal(body, &parsed); err != nil || parsed.AccessToken == "" {
			return AccessToken{}, true, m.authError("malformed token exchange response", err, 0, resp.StatusCode)
		}
		return AccessToken{
			Value:     parsed.AccessToken,
			ExpiresAt: time.Now().Add(accessTokenTTL),
		}, false, nil
	case http.StatusUnauthorized:
		return AccessToken{}, false, m.authError("refresh token rejected", nil, 0, resp.StatusCode)
	default:
		return AccessToken{}, true, m.authError("unexpected token exchange status", nil, 0, resp.StatusCode)
	}
}

func (m *TokenManager) authError(message string, cause error, attempt, status int) *Error {
	return &Error{
		Kind:       KindAuthentication,
		Message:    message,
		Cause:      cause,
		Method:     http.MethodPost,
		URL:        m.authURL,
		StatusCode: status,
		Attempt:    attempt,
		Timestamp:  time.Now(),
	}
}
