// Package offers is a client runtime for the Offers catalog service: it
// registers products and retrieves priced offers behind a refresh-token
// authentication scheme.
//
// The request executor layers the reliability concerns around every call:
//
//   - Single-flight access token refresh, persisted across restarts
//   - Retries with exponential backoff + jitter for transient failures
//   - One dedicated refresh-and-retry on 401, outside the transient budget
//   - TTL cache for offer listings with explicit invalidation
//   - Ordered hook pipeline for logging, cache eviction and custom concerns
//   - Interchangeable HTTP backends (net/http, resty, fasthttp)
//   - Optional rate limiting, request deduplication and Prometheus metrics
//
// Typical usage:
//
//	settings, err := offers.LoadSettings()
//	if err != nil { ... }
//	client, err := offers.New(settings,
//	    offers.WithMaxAttempts(3),
//	    offers.WithHooks(offers.NewLoggingHook(logger)),
//	)
//	if err != nil { ... }
//	defer client.Close()
//
//	result, err := client.RegisterProduct(ctx, offers.Product{ID: id, Name: name})
//	listing, err := client.GetOffersCached(ctx, id)
//
// A single Client is safe for concurrent use; all calls share one token
// manager and one transport. Logging is opt-in: provide a Logger (e.g. via
// NewLogrusLogger) to see the request lifecycle.
package offers
