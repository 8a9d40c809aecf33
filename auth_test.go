package offers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newAuthManager(t *testing.T, url string, store TokenStore) *TokenManager {
	t.Helper()
	m := NewTokenManager(testSettings(url), store)
	m.exchangeInitial = time.Millisecond
	m.exchangeMax = 5 * time.Millisecond
	return m
}

func TestTokenManagerSingleFlight(t *testing.T) {
	var exchanges int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&exchanges, 1)
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"access_token":"single"}`)
	}))
	defer server.Close()

	m := newAuthManager(t, server.URL, nil)

	const callers = 20
	var wg sync.WaitGroup
	tokens := make([]AccessToken, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = m.Token(context.Background())
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&exchanges); got != 1 {
		t.Errorf("expected exactly 1 exchange for %d concurrent callers, got %d", callers, got)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d returned error: %v", i, errs[i])
		}
		if tokens[i].Value != "single" {
			t.Errorf("caller %d got token %q", i, tokens[i].Value)
		}
	}
}

func TestTokenManagerReusesValidToken(t *testing.T) {
	var exchanges int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&exchanges, 1)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"access_token":"fresh"}`)
	}))
	defer server.Close()

	m := newAuthManager(t, server.URL, nil)

	for i := 0; i < 3; i++ {
		if _, err := m.Token(context.Background()); err != nil {
			t.Fatalf("Token() returned error: %v", err)
		}
	}
	if got := atomic.LoadInt32(&exchanges); got != 1 {
		t.Errorf("valid token must be reused, saw %d exchanges", got)
	}
}

func TestTokenManagerRefreshesWithinSafetyMargin(t *testing.T) {
	var exchanges int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&exchanges, 1)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"access_token":"replacement"}`)
	}))
	defer server.Close()

	store := NewMemoryTokenStore()
	// Expires inside the safety margin, so it must not be served.
	if err := store.Save(AccessToken{Value: "stale", ExpiresAt: time.Now().Add(5 * time.Second)}); err != nil {
		t.Fatalf("Save() returned error: %v", err)
	}

	m := newAuthManager(t, server.URL, store)
	token, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() returned error: %v", err)
	}
	if token.Value != "replacement" {
		t.Errorf("expected refreshed token, got %q", token.Value)
	}
	if got := atomic.LoadInt32(&exchanges); got != 1 {
		t.Errorf("expected 1 exchange, got %d", got)
	}
}

func TestTokenManagerReusesPersistedToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("exchange must not happen when the persisted token is valid")
	}))
	defer server.Close()

	store := NewMemoryTokenStore()
	if err := store.Save(AccessToken{Value: "persisted", ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("Save() returned error: %v", err)
	}

	m := newAuthManager(t, server.URL, store)
	token, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() returned error: %v", err)
	}
	if token.Value != "persisted" {
		t.Errorf("expected persisted token, got %q", token.Value)
	}
}

func TestTokenManagerPersistsRefreshedToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"access_token":"saved"}`)
	}))
	defer server.Close()

	store := NewMemoryTokenStore()
	m := newAuthManager(t, server.URL, store)
	if _, err := m.Token(context.Background()); err != nil {
		t.Fatalf("Token() returned error: %v", err)
	}

	token, ok, err := store.Load()
	if err != nil || !ok {
		t.Fatalf("Load() = %v, %v, %v", token, ok, err)
	}
	if token.Value != "saved" {
		t.Errorf("expected persisted value %q, got %q", "saved", token.Value)
	}
	if !token.Valid(tokenSafetyMargin) {
		t.Errorf("persisted token already expired: %v", token.ExpiresAt)
	}
}

func TestTokenManagerRejectedRefreshToken(t *testing.T) {
	var exchanges int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&exchanges, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	m := newAuthManager(t, server.URL, nil)
	_, err := m.Token(context.Background())
	if !IsAuthentication(err) {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if got := atomic.LoadInt32(&exchanges); got != 1 {
		t.Errorf("401 must not be retried, saw %d exchanges", got)
	}
}

func TestTokenManagerRetriesTransientExchangeFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"access_token":"eventually"}`)
	}))
	defer server.Close()

	m := newAuthManager(t, server.URL, nil)
	token, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if token.Value != "eventually" {
		t.Errorf("unexpected token %q", token.Value)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 exchange attempts, got %d", got)
	}
}

func TestTokenManagerExchangeBudgetExhausted(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	m := newAuthManager(t, server.URL, nil)
	_, err := m.Token(context.Background())
	if !IsAuthentication(err) {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != exchangeMaxAttempts {
		t.Errorf("expected %d exchange attempts, got %d", exchangeMaxAttempts, got)
	}
}

func TestTokenManagerEmptyRefreshToken(t *testing.T) {
	settings := testSettings("http://127.0.0.1:0")
	settings.RefreshToken = "   "
	m := NewTokenManager(settings, nil)

	_, err := m.Token(context.Background())
	if !IsAuthentication(err) {
		t.Fatalf("expected authentication error, got %v", err)
	}
}

func TestTokenManagerCanceledWaiterDoesNotAbortRefresh(t *testing.T) {
	release := make(chan struct{})
	var exchanges int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&exchanges, 1)
		<-release
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"access_token":"survivor"}`)
	}))
	defer server.Close()

	m := newAuthManager(t, server.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	canceledErr := make(chan error, 1)
	go func() {
		_, err := m.Token(ctx)
		canceledErr <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-canceledErr; err != context.Canceled {
		t.Fatalf("canceled waiter must see context.Canceled, got %v", err)
	}

	close(release)
	token, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("surviving refresh returned error: %v", err)
	}
	if token.Value != "survivor" {
		t.Errorf("unexpected token %q", token.Value)
	}
	if got := atomic.LoadInt32(&exchanges); got != 1 {
		t.Errorf("cancellation must not spawn a second exchange, saw %d", got)
	}
}

func TestForceRefreshJoinsInFlightExchange(t *testing.T) {
	release := make(chan struct{})
	var exchanges int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&exchanges, 1)
		<-release
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"access_token":"joined"}`)
	}))
	defer server.Close()

	m := newAuthManager(t, server.URL, nil)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.ForceRefresh(context.Background()); err != nil {
				t.Errorf("ForceRefresh() returned error: %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&exchanges); got != 1 {
		t.Errorf("concurrent forced refreshes must share one exchange, saw %d", got)
	}
}

func TestAccessTokenValid(t *testing.T) {
	token := AccessToken{Value: "v", ExpiresAt: time.Now().Add(time.Minute)}
	if !token.Valid(10 * time.Second) {
		t.Error("token a minute from expiry must be valid for a 10s margin")
	}
	if token.Valid(2 * time.Minute) {
		t.Error("token must be invalid when the margin exceeds its remaining life")
	}
	if (AccessToken{}).Valid(0) {
		t.Error("zero token must never be valid")
	}
}
