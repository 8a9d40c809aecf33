package offers

import (
	"context"
	"sync"
	"time"
)

// dedupEntry is one in-flight offer fetch shared between callers. The owner
// completes it; waiters block on done or their own context.
type dedupEntry struct {
	mu     sync.Mutex
	offers []Offer
	err    error
	done   chan struct{}
}

// wait blocks until the owning fetch completes or ctx is canceled. A
// canceled waiter stops waiting without affecting the in-flight fetch.
func (e *dedupEntry) wait(ctx context.Context) ([]Offer, error) {
	select {
	case <-e.done:
		e.mu.Lock()
		offers, err := e.offers, e.err
		e.mu.Unlock()
		return offers, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DeduplicationTracker coalesces concurrent identical offer fetches: the
// first caller for a product performs the exchange, the rest share its
// result.
type DeduplicationTracker struct {
	mu      sync.Mutex
	entries map[string]*dedupEntry
}

// NewDeduplicationTracker returns an empty tracker.
func NewDeduplicationTracker() *DeduplicationTracker {
	return &DeduplicationTracker{
		entries: make(map[string]*dedupEntry),
	}
}

// begin returns the in-flight entry for key. owner is true when the caller
// created it and must call complete.
func (dt *DeduplicationTracker) begin(key string) (entry *dedupEntry, owner bool) {
	dt.mu.Lock()
	defer dt.mu.Unlock()

	if entry, exists := dt.entries[key]; exists {
		return entry, false
	}
	entry = &dedupEntry{done: make(chan struct{})}
	dt.entries[key] = entry
	return entry, true
}

// complete publishes the result and releases waiters. The entry lingers
// briefly so racing callers still coalesce, then is dropped to bound memory.
func (dt *DeduplicationTracker) complete(key string, offers []Offer, err error) {
	dt.mu.Lock()
	entry, exists := dt.entries[key]
	dt.mu.Unlock()
	if !exists {
		return
	}

	entry.mu.Lock()
	entry.offers = offers
	entry.err = err
	entry.mu.Unlock()
	close(entry.done)

	time.AfterFunc(100*time.Millisecond, func() {
		dt.mu.Lock()
		if dt.entries[key] == entry {
			delete(dt.entries, key)
		}
		dt.mu.Unlock()
	})
}
