package offers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
)

// FastHTTPTransport is a fasthttp backed transport. fasthttp has no native
// context support, so the context deadline is translated into a request
// deadline.
type FastHTTPTransport struct {
	client  *fasthttp.Client
	timeout time.Duration
}

// NewFastHTTPTransport returns a fasthttp backed transport with the given
// per-request timeout.
func NewFastHTTPTransport(timeout time.Duration) *FastHTTPTransport {
	return &FastHTTPTransport{
		client:  &fasthttp.Client{},
		timeout: timeout,
	}
}

// Do implements Transport.
func (t *FastHTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, normalizeTransportError(err, req)
	}

	freq := fasthttp.AcquireRequest()
	fresp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(freq)
	defer fasthttp.ReleaseResponse(fresp)

	freq.Header.SetMethod(req.Method)
	freq.SetRequestURI(req.URL)
	for key, values := range req.Header {
		for _, value := range values {
			freq.Header.Add(key, value)
		}
	}
	if len(req.Body) > 0 {
		freq.SetBody(req.Body)
	}

	deadline := time.Now().Add(t.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := t.client.DoDeadline(freq, fresp, deadline); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) {
			err = context.DeadlineExceeded
		}
		return nil, normalizeTransportError(err, req)
	}

	header := http.Header{}
	fresp.Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})

	return &Response{
		StatusCode: fresp.StatusCode(),
		Header:     header,
		Body:       append([]byte(nil), fresp.Body()...),
	}, nil
}

// Close releases pooled connections. Safe to call more than once.
func (t *FastHTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
