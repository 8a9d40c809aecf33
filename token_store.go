package offers

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/peterbourgon/diskv/v3"
)

// AccessToken is the short-lived bearer credential presented to the service.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// Valid reports whether the token will still be usable for at least margin.
func (t AccessToken) Valid(margin time.Duration) bool {
	return t.Value != "" && time.Now().Add(margin).Before(t.ExpiresAt)
}

// TokenStore persists an access token across process restarts. Load failures
// are treated by the TokenManager as a cache miss, never as fatal.
type TokenStore interface {
	Load() (AccessToken, bool, error)
	Save(AccessToken) error
	Clear() error
}

// storedToken is the on-disk JSON shape. Expiry is a UNIX timestamp so the
// slot stays readable by other tooling.
type storedToken struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

const tokenStoreKey = "access_token.json"

// tokenStoreCacheMax bounds diskv's in-memory cache; the slot holds one tiny
// JSON document.
const tokenStoreCacheMax = 1024

// DiskTokenStore keeps the token in a diskv-backed file under dir.
type DiskTokenStore struct {
	dv *diskv.Diskv
}

// NewDiskTokenStore creates a durable token store rooted at dir. The
// directory is created lazily on first write.
func NewDiskTokenStore(dir string) *DiskTokenStore {
	flatTransform := func(s string) []string { return []string{} }
	dv := diskv.New(diskv.Options{
		BasePath:     dir,
		Transform:    flatTransform,
		CacheSizeMax: tokenStoreCacheMax,
	})
	return &DiskTokenStore{dv: dv}
}

// Load reads the persisted token. A missing slot returns ok=false with no
// error; a corrupt slot returns an error the caller should treat as a miss.
func (s *DiskTokenStore) Load() (AccessToken, bool, error) {
	if !s.dv.Has(tokenStoreKey) {
		return AccessToken{}, false, nil
	}
	b, err := s.dv.Read(tokenStoreKey)
	if err != nil {
		return AccessToken{}, false, err
	}
	var st storedToken
	if err := json.Unmarshal(b, &st); err != nil {
		return AccessToken{}, false, err
	}
	if st.AccessToken == "" || st.ExpiresAt == 0 {
		return AccessToken{}, false, nil
	}
	return AccessToken{Value: st.AccessToken, ExpiresAt: time.Unix(st.ExpiresAt, 0)}, true, nil
}

// Save writes the token to the durable slot.
func (s *DiskTokenStore) Save(token AccessToken) error {
	b, err := json.Marshal(storedToken{
		AccessToken: token.Value,
		ExpiresAt:   token.ExpiresAt.Unix(),
	})
	if err != nil {
		return err
	}
	return s.dv.Write(tokenStoreKey, b)
}

// Clear removes the persisted token. Clearing an empty slot is not an error.
func (s *DiskTokenStore) Clear() error {
	if !s.dv.Has(tokenStoreKey) {
		return nil
	}
	return s.dv.Erase(tokenStoreKey)
}

// MemoryTokenStore is an in-process TokenStore for tests and ephemeral use.
type MemoryTokenStore struct {
	mu    sync.Mutex
	token AccessToken
	set   bool
}

// NewMemoryTokenStore returns an empty in-memory store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

// Load returns the stored token, if any.
func (s *MemoryTokenStore) Load() (AccessToken, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.set, nil
}

// Save stores the token.
func (s *MemoryTokenStore) Save(token AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.set = true
	return nil
}

// Clear drops the stored token.
func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = AccessToken{}
	s.set = false
	return nil
}
