package offers

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
)

// RestyTransport is a go-resty backed transport. Resty's own retry machinery
// is disabled; retries belong to the client's retry policy.
type RestyTransport struct {
	client *resty.Client
}

// NewRestyTransport returns a resty backed transport with the given
// per-request timeout.
func NewRestyTransport(timeout time.Duration) *RestyTransport {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetDoNotParseResponse(false)
	return &RestyTransport{client: client}
}

// Do implements Transport.
func (t *RestyTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	r := t.client.R().SetContext(ctx)
	for key, values := range req.Header {
		for _, value := range values {
			r.SetHeader(key, value)
		}
	}
	if len(req.Body) > 0 {
		r.SetBody(req.Body)
	}

	resp, err := r.Execute(req.Method, req.URL)
	if err != nil {
		return nil, normalizeTransportError(err, req)
	}

	body := resp.Body()
	return &Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header().Clone(),
		Body:       append([]byte(nil), body...),
	}, nil
}

// Close releases pooled connections. Safe to call more than once.
func (t *RestyTransport) Close() error {
	t.client.GetClient().CloseIdleConnections()
	return nil
}
