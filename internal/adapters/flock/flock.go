// Package flock implements on-disk advisory locks. A lock is a file
// created with O_EXCL holding the owner's pid; a lock whose owner is no
// longer alive counts as stale and is reclaimed.
package flock

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.trai.ch/zerr"

	"github.com/LuckyWindsck/mise/internal/core/domain"
	"github.com/LuckyWindsck/mise/internal/core/ports"
)

// Locker implements ports.Locker.
type Locker struct {
	// Retries and Delay bound Acquire. Zero values use the defaults.
	Retries int
	Delay   time.Duration
}

const (
	defaultRetries = 5
	defaultDelay   = 100 * time.Millisecond
)

// New creates a Locker with default retry bounds.
func New() *Locker {
	return &Locker{Retries: defaultRetries, Delay: defaultDelay}
}

// TryAcquire attempts the lock once without blocking.
func (l *Locker) TryAcquire(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, zerr.Wrap(err, "failed to create lock directory")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644) //nolint:gosec // lock path derives from the install tree
	if errors.Is(err, fs.ErrExist) {
		if l.stale(path) {
			_ = os.Remove(path)
			f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644) //nolint:gosec // see above
		}
	}
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, zerr.With(domain.ErrInstallBusy, "lock", path)
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to create lock file"), "lock", path)
	}

	_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
	_ = f.Close()
	return func() { _ = os.Remove(path) }, nil
}

// Acquire retries a bounded number of times before returning InstallBusy.
func (l *Locker) Acquire(path string) (func(), error) {
	retries := l.Retries
	if retries <= 0 {
		retries = defaultRetries
	}
	delay := l.Delay
	if delay <= 0 {
		delay = defaultDelay
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		release, err := l.TryAcquire(path)
		if err == nil {
			return release, nil
		}
		if !errors.Is(err, domain.ErrInstallBusy) {
			return nil, err
		}
		lastErr = err
		if attempt < retries {
			time.Sleep(delay)
		}
	}
	return nil, lastErr
}

// Held reports whether a live process owns the lock.
func (l *Locker) Held(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	return !l.stale(path)
}

// stale reports whether the lock file's owner process is gone. An
// unreadable or malformed lock file counts as stale.
func (l *Locker) stale(path string) bool {
	data, err := os.ReadFile(path) //nolint:gosec // lock path derives from the install tree
	if err != nil {
		return true
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return true
	}
	if pid == os.Getpid() {
		return false
	}
	// Signal 0 probes process existence without delivering anything.
	err = syscall.Kill(pid, 0)
	return errors.Is(err, syscall.ESRCH)
}

var _ ports.Locker = (*Locker)(nil)
