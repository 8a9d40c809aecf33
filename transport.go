package offers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Request is the transport-neutral shape of one outgoing HTTP exchange.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is the transport-neutral result of an exchange. Body is fully
// drained before the response is returned, so callers never hold backend
// resources.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport sends a single HTTP request. Implementations must be safe for
// concurrent use, honor the context deadline, and normalize backend failures
// through normalizeTransportError so every backend surfaces the same error
// kinds.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
	Close() error
}

// NewTransport builds the backend selected by kind. Selection happens once at
// client construction, never per call.
func NewTransport(kind TransportKind, timeout time.Duration) (Transport, error) {
	switch kind {
	case TransportNetHTTP, "":
		return NewHTTPTransport(timeout), nil
	case TransportResty:
		return NewRestyTransport(timeout), nil
	case TransportFastHTTP:
		return NewFastHTTPTransport(timeout), nil
	default:
		return nil, settingsError(fmt.Sprintf("unknown transport %q", kind))
	}
}

// normalizeTransportError maps backend-specific failures onto the shared
// taxonomy: timeouts and connection failures are transient.
func normalizeTransportError(err error, req *Request) *Error {
	message := "connection failed"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		message = "request timed out"
	case errors.Is(err, context.Canceled):
		message = "request canceled"
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			message = "request timed out"
		}
	}
	return &Error{
		Kind:      KindTransient,
		Message:   message,
		Cause:     err,
		Method:    req.Method,
		URL:       req.URL,
		Timestamp: time.Now(),
	}
}
