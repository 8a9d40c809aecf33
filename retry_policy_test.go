package offers

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func newTestPolicy() *DefaultRetryPolicy {
	return NewDefaultRetryPolicy(3, 100*time.Millisecond, time.Second, 2.0, 0)
}

func TestShouldRetryTransientStatuses(t *testing.T) {
	policy := newTestPolicy()

	for _, code := range []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusTooManyRequests} {
		resp := &Response{StatusCode: code, Header: http.Header{}}
		if _, retry := policy.ShouldRetry(resp, nil, 0); !retry {
			t.Errorf("status %d must be retried", code)
		}
	}
}

func TestShouldNotRetryPermanentStatuses(t *testing.T) {
	policy := newTestPolicy()

	for _, code := range []int{http.StatusOK, http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity} {
		resp := &Response{StatusCode: code, Header: http.Header{}}
		if _, retry := policy.ShouldRetry(resp, nil, 0); retry {
			t.Errorf("status %d must not be retried", code)
		}
	}
}

func TestShouldRetryTransientError(t *testing.T) {
	policy := newTestPolicy()

	transient := &Error{Kind: KindTransient, Message: "connection refused"}
	if _, retry := policy.ShouldRetry(nil, transient, 0); !retry {
		t.Error("transient error must be retried")
	}

	permanent := &Error{Kind: KindPermanent, Message: "nope"}
	if _, retry := policy.ShouldRetry(nil, permanent, 0); retry {
		t.Error("permanent error must not be retried")
	}

	if _, retry := policy.ShouldRetry(nil, errors.New("plain"), 0); retry {
		t.Error("unclassified error must not be retried")
	}
}

func TestShouldRetryExhaustsAttempts(t *testing.T) {
	policy := newTestPolicy()
	resp := &Response{StatusCode: http.StatusInternalServerError, Header: http.Header{}}

	if _, retry := policy.ShouldRetry(resp, nil, 1); !retry {
		t.Error("attempt 1 of 3 must still retry")
	}
	if _, retry := policy.ShouldRetry(resp, nil, 2); retry {
		t.Error("attempt 2 of 3 is the last one and must not retry")
	}
}

func TestShouldRetryDelayBounds(t *testing.T) {
	policy := NewDefaultRetryPolicy(5, 100*time.Millisecond, 500*time.Millisecond, 2.0, 0)
	resp := &Response{StatusCode: http.StatusInternalServerError, Header: http.Header{}}

	for attempt := 0; attempt < 4; attempt++ {
		delay, retry := policy.ShouldRetry(resp, nil, attempt)
		if !retry {
			t.Fatalf("attempt %d must retry", attempt)
		}
		if delay < 100*time.Millisecond || delay > 500*time.Millisecond {
			t.Errorf("attempt %d delay %v outside [100ms, 500ms]", attempt, delay)
		}
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	policy := newTestPolicy()
	resp := &Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{}}
	resp.Header.Set("Retry-After", "7")

	delay, retry := policy.ShouldRetry(resp, nil, 0)
	if !retry {
		t.Fatal("429 must be retried")
	}
	if delay != 7*time.Second {
		t.Errorf("expected 7s from Retry-After, got %v", delay)
	}
}

func TestRetryAfterHTTPDate(t *testing.T) {
	policy := newTestPolicy()
	resp := &Response{StatusCode: http.StatusServiceUnavailable, Header: http.Header{}}
	resp.Header.Set("Retry-After", time.Now().Add(30*time.Second).UTC().Format(http.TimeFormat))

	delay, retry := policy.ShouldRetry(resp, nil, 0)
	if !retry {
		t.Fatal("503 must be retried")
	}
	if delay < 20*time.Second || delay > 30*time.Second {
		t.Errorf("expected roughly 30s from Retry-After date, got %v", delay)
	}
}

func TestParseRetryAfter(t *testing.T) {
	cases := []struct {
		value string
		want  time.Duration
	}{
		{"", 0},
		{"0", 0},
		{"-1", 0},
		{"garbage", 0},
		{"5", 5 * time.Second},
		{"7200", time.Hour},
	}
	for _, tc := range cases {
		if got := parseRetryAfter(tc.value); got != tc.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}
