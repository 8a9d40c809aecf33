package offers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskTokenStoreRoundTrip(t *testing.T) {
	store := NewDiskTokenStore(t.TempDir())

	_, ok, err := store.Load()
	require.NoError(t, err)
	assert.False(t, ok, "fresh store must be empty")

	expires := time.Now().Add(5 * time.Minute).Truncate(time.Second)
	require.NoError(t, store.Save(AccessToken{Value: "tok", ExpiresAt: expires}))

	token, ok, err := store.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tok", token.Value)
	assert.True(t, token.ExpiresAt.Equal(expires), "expiry must survive the round trip at second precision")
}

func TestDiskTokenStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, NewDiskTokenStore(dir).Save(AccessToken{Value: "persisted", ExpiresAt: expires}))

	token, ok, err := NewDiskTokenStore(dir).Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "persisted", token.Value)
}

func TestDiskTokenStoreClear(t *testing.T) {
	store := NewDiskTokenStore(t.TempDir())

	require.NoError(t, store.Clear(), "clearing an empty slot is not an error")

	require.NoError(t, store.Save(AccessToken{Value: "tok", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, store.Clear())

	_, ok, err := store.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDiskTokenStoreCorruptSlot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "access_token.json"), []byte("not json"), 0o600))

	_, ok, err := NewDiskTokenStore(dir).Load()
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestDiskTokenStoreIncompleteSlot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "access_token.json"), []byte(`{"access_token":""}`), 0o600))

	_, ok, err := NewDiskTokenStore(dir).Load()
	require.NoError(t, err)
	assert.False(t, ok, "a slot without a token value is a miss")
}

func TestMemoryTokenStore(t *testing.T) {
	store := NewMemoryTokenStore()

	_, ok, err := store.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	token := AccessToken{Value: "mem", ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, store.Save(token))

	got, ok, err := store.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, token, got)

	require.NoError(t, store.Clear())
	_, ok, err = store.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}
