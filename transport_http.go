package offers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// HTTPTransport is the default backend, built on the standard library's
// http.Client with its shared connection pool.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport returns a net/http backed transport with the given
// per-request timeout.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		client: &http.Client{Timeout: timeout},
	}
}

// Do implements Transport.
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, &Error{Kind: KindPermanent, Message: "invalid request", Cause: err, Method: req.Method, URL: req.URL, Timestamp: time.Now()}
	}
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, normalizeTransportError(err, req)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, normalizeTransportError(err, req)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       body,
	}, nil
}

// Close releases pooled connections. Safe to call more than once.
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
