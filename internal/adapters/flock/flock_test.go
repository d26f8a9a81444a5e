package flock_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuckyWindsck/mise/internal/adapters/flock"
	"github.com/LuckyWindsck/mise/internal/core/domain"
)

func TestTryAcquire_CreatesAndReleases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tool.lock")
	l := flock.New()

	release, err := l.TryAcquire(path)
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err)
	assert.True(t, l.Held(path))

	release()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.False(t, l.Held(path))
}

func TestTryAcquire_BusyWhileHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tool.lock")
	l := flock.New()

	release, err := l.TryAcquire(path)
	require.NoError(t, err)
	defer release()

	// Same pid holds the lock, so it is not stale.
	_, err = l.TryAcquire(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInstallBusy))
}

func TestTryAcquire_ReclaimsStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tool.lock")
	// A payload that is not a pid counts as stale.
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	l := flock.New()
	release, err := l.TryAcquire(path)
	require.NoError(t, err)
	release()
}

func TestAcquire_BoundedRetry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tool.lock")
	l := &flock.Locker{Retries: 2, Delay: time.Millisecond}

	release, err := l.TryAcquire(path)
	require.NoError(t, err)
	defer release()

	start := time.Now()
	_, err = l.Acquire(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInstallBusy))
	assert.Less(t, time.Since(start), time.Second)
}
