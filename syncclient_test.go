package offers

import (
	"net/http"
	"testing"
)

func TestSyncClient(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/products/register":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"p1"}`))
		case "/api/v1/products/p1/offers":
			writeOffers(t, w)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	client, err := NewSyncClient(testSettings(ts.URL), WithTokenStore(NewMemoryTokenStore()))
	if err != nil {
		t.Fatalf("NewSyncClient() returned error: %v", err)
	}
	defer client.Close()

	result, err := client.RegisterProduct(Product{ID: "p1", Name: "X", Description: "Y"})
	if err != nil {
		t.Fatalf("RegisterProduct() returned error: %v", err)
	}
	if result.ID != "p1" {
		t.Errorf("unexpected registration id %q", result.ID)
	}

	offers, err := client.GetOffers("p1")
	if err != nil {
		t.Fatalf("GetOffers() returned error: %v", err)
	}
	if len(offers) != 1 {
		t.Errorf("unexpected offers %+v", offers)
	}

	cached, err := client.GetOffersCached("p1")
	if err != nil {
		t.Fatalf("GetOffersCached() returned error: %v", err)
	}
	if len(cached) != 1 {
		t.Errorf("unexpected cached offers %+v", cached)
	}

	if client.Client() == nil {
		t.Error("Client() must expose the underlying client")
	}
}

func TestSyncClientInvalidSettings(t *testing.T) {
	if _, err := NewSyncClient(DefaultSettings()); err == nil {
		t.Fatal("expected validation error for missing refresh token")
	}
}
