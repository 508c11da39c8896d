package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredential_IsValid(t *testing.T) {
	assert.True(t, Credential{Cookies: "identity=abc; other=1"}.IsValid())
	assert.False(t, Credential{Cookies: "other=1"}.IsValid())
	assert.False(t, Credential{}.IsValid())
}

func TestStore_PersistRoundTrip(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	_, ok := store.Current()
	assert.False(t, ok)
	assert.False(t, store.IsValid())

	require.NoError(t, store.Set(Credential{Cookies: "identity=abc123"}))
	cred, ok := store.Current()
	require.True(t, ok)
	assert.Equal(t, "identity=abc123", cred.Cookies)
	assert.False(t, cred.SavedAt.IsZero())
	assert.True(t, store.IsValid())

	// A fresh store on the same directory loads the persisted credential.
	reloaded, err := NewStore(dir)
	require.NoError(t, err)
	cred, ok = reloaded.Current()
	require.True(t, ok)
	assert.Equal(t, "identity=abc123", cred.Cookies)
}

func TestStore_LoadTrimsWhitespace(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cookies"), []byte("identity=abc\n"), 0600))

	store, err := NewStore(dir)
	require.NoError(t, err)
	cred, ok := store.Current()
	require.True(t, ok)
	assert.Equal(t, "identity=abc", cred.Cookies)
}

func TestStore_SetEmptyRejected(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, store.Set(Credential{}))
}

func TestStore_Clear(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set(Credential{Cookies: "identity=abc"}))
	require.NoError(t, store.Clear())

	_, ok := store.Current()
	assert.False(t, ok)
	_, err = os.Stat(filepath.Join(dir, "cookies"))
	assert.True(t, os.IsNotExist(err))

	// Clearing an already-empty store is fine.
	assert.NoError(t, store.Clear())
}

func TestStore_NoPartialReads(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set(Credential{Cookies: "identity=old"}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = store.Set(Credential{Cookies: "identity=new"})
		}
	}()

	// Concurrent readers must always observe a complete credential.
	for i := 0; i < 100; i++ {
		cred, ok := store.Current()
		require.True(t, ok)
		assert.Contains(t, []string{"identity=old", "identity=new"}, cred.Cookies)
	}
	<-done
}
