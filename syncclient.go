package offers

import (
	"context"
)

// SyncClient wraps Client for call sites that do not thread a context. Each
// call runs on its own background context; per-attempt deadlines still come
// from the configured timeout.
type SyncClient struct {
	client *Client
}

// NewSyncClient builds a context-free client with the same settings and
// options as New.
func NewSyncClient(settings Settings, options ...Option) (*SyncClient, error) {
	client, err := New(settings, options...)
	if err != nil {
		return nil, err
	}
	return &SyncClient{client: client}, nil
}

// Client returns the underlying context-aware client.
func (s *SyncClient) Client() *Client {
	return s.client
}

// RegisterProduct registers a product.
func (s *SyncClient) RegisterProduct(product Product) (*RegistrationResult, error) {
	return s.client.RegisterProduct(context.Background(), product)
}

// GetOffers fetches the offer listing for a product.
func (s *SyncClient) GetOffers(productID string) ([]Offer, error) {
	return s.client.GetOffers(context.Background(), productID)
}

// GetOffersCached fetches the offer listing, served from cache within the
// TTL.
func (s *SyncClient) GetOffersCached(productID string) ([]Offer, error) {
	return s.client.GetOffersCached(context.Background(), productID)
}

// Close releases transport resources. Idempotent.
func (s *SyncClient) Close() error {
	return s.client.Close()
}
