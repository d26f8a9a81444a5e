package cache_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuckyWindsck/mise/internal/adapters/cache"
)

func TestStore_PutGetRoundTrip(t *testing.T) {
	s := cache.NewStore(t.TempDir(), nil)

	fp := cache.Fingerprint("core:python", "versions")
	require.NoError(t, s.Put("remote-versions", fp, []byte("3.11.9\n3.12.1\n")))

	payload, ok := s.Get("remote-versions", fp)
	require.True(t, ok)
	assert.Equal(t, "3.11.9\n3.12.1\n", string(payload))
}

func TestStore_MissOnUnknownKey(t *testing.T) {
	s := cache.NewStore(t.TempDir(), nil)
	_, ok := s.Get("remote-versions", cache.Fingerprint("nope"))
	assert.False(t, ok)
}

func TestStore_CorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	s := cache.NewStore(dir, nil)

	fp := cache.Fingerprint("k")
	require.NoError(t, s.Put("env", fp, []byte("payload")))
	// Destroy the sidecar; the entry must degrade to a miss, not an error.
	require.NoError(t, os.Remove(filepath.Join(dir, "env", fp+".meta")))

	_, ok := s.Get("env", fp)
	assert.False(t, ok)
}

func TestStore_PruneRemovesOldEntries(t *testing.T) {
	clock := clockwork.NewFakeClock()
	dir := t.TempDir()
	s := cache.NewStore(dir, clock)

	oldFp := cache.Fingerprint("old")
	require.NoError(t, s.Put("env", oldFp, []byte("old")))

	clock.Advance(48 * time.Hour)
	newFp := cache.Fingerprint("new")
	require.NoError(t, s.Put("env", newFp, []byte("new")))

	require.NoError(t, s.Prune(24*time.Hour))

	_, ok := s.Get("env", oldFp)
	assert.False(t, ok, "expired entry pruned")
	_, ok = s.Get("env", newFp)
	assert.True(t, ok, "fresh entry kept")
}

func TestStore_Clear(t *testing.T) {
	s := cache.NewStore(t.TempDir(), nil)
	fp := cache.Fingerprint("x")
	require.NoError(t, s.Put("layers", fp, []byte("data")))
	require.NoError(t, s.Clear())
	_, ok := s.Get("layers", fp)
	assert.False(t, ok)
}

func TestFingerprint_Deterministic(t *testing.T) {
	assert.Equal(t, cache.Fingerprint("a", "b"), cache.Fingerprint("a", "b"))
	assert.NotEqual(t, cache.Fingerprint("a", "b"), cache.Fingerprint("ab"))
	assert.NotEqual(t, cache.Fingerprint("a", "b"), cache.Fingerprint("b", "a"))
}

func TestMemo(t *testing.T) {
	m := cache.NewMemo[string]()
	_, ok := m.Get("fp")
	assert.False(t, ok)

	m.Put("fp", "value")
	v, ok := m.Get("fp")
	require.True(t, ok)
	assert.Equal(t, "value", v)
}
