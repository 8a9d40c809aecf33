package offers

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a client failure. Retry decisions and caller handling
// key off the kind, not the message.
type ErrorKind string

const (
	// KindAuthentication covers refresh-token rejection and token exchange
	// failures after the exchange's own bounded attempts.
	KindAuthentication ErrorKind = "Authentication"
	// KindTransient covers timeouts, connection failures, 5xx and 429
	// responses. Eligible for retry.
	KindTransient ErrorKind = "Transient"
	// KindPermanent covers 4xx responses other than 401. Never retried.
	KindPermanent ErrorKind = "Permanent"
	// KindCache covers local cache storage failures. Never fatal to a call.
	KindCache ErrorKind = "Cache"
	// KindPipeline marks a hook failure. Aborts the call, never retried.
	KindPipeline ErrorKind = "Pipeline"
	// KindRateLimit marks a request denied by the local rate limiter gate.
	KindRateLimit ErrorKind = "RateLimit"
	// KindValidation marks invalid client configuration.
	KindValidation ErrorKind = "Validation"
)

// Error carries enough context to diagnose a failed call without inspecting
// client internals: the logical operation, last status and attempt count.
type Error struct {
	Kind        ErrorKind
	Message     string
	Cause       error
	Op          string
	Method      string
	URL         string
	StatusCode  int
	Attempt     int
	MaxAttempts int
	RequestID   string
	Timestamp   time.Time
	Duration    time.Duration
	Detail      interface{}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.MaxAttempts > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt+1, e.MaxAttempts)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches errors of the same kind for errors.Is.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*Error); ok {
		return e.Kind == targetErr.Kind
	}
	return false
}

// IsTransient reports whether err represents a failure that might succeed on
// retry: network errors, timeouts, 5xx responses and 429.
func IsTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindTransient
	}
	return false
}

// IsAuthentication reports whether err is a credential or token exchange
// failure.
func IsAuthentication(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindAuthentication
	}
	return false
}

// IsPermanent reports whether err is a non-retryable upstream rejection.
func IsPermanent(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindPermanent
	}
	return false
}

// IsPipeline reports whether err was raised by a middleware hook.
func IsPipeline(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindPipeline
	}
	return false
}
