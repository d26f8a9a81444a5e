// Package cache implements the on-disk cache layer: per-namespace entries
// keyed by fingerprint, atomic writes, age-based pruning.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jonboulle/clockwork"
	"go.trai.ch/zerr"

	"github.com/LuckyWindsck/mise/internal/core/ports"
)

// Store implements ports.CacheStore on a directory tree
// <root>/<namespace>/<fingerprint> with a sidecar .meta per entry holding
// the creation time.
type Store struct {
	root  string
	clock clockwork.Clock
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{root: filepath.Clean(dir), clock: clock}
}

// Fingerprint hashes the given parts into a stable cache key.
func Fingerprint(parts ...string) string {
	h := xxhash.New()
	for _, p := range parts {
		_, _ = h.WriteString(p)
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// Get returns the payload for (namespace, fingerprint). Any read problem,
// including a missing or unreadable sidecar, reports a miss.
func (s *Store) Get(namespace, fingerprint string) ([]byte, bool) {
	path := s.entryPath(namespace, fingerprint)
	payload, err := os.ReadFile(path) //nolint:gosec // path is rooted in the cache dir
	if err != nil {
		return nil, false
	}
	if _, err := s.createdAt(path); err != nil {
		return nil, false
	}
	return payload, true
}

// Put stores a payload atomically: temp file, then rename.
func (s *Store) Put(namespace, fingerprint string, payload []byte) error {
	path := s.entryPath(namespace, fingerprint)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return zerr.Wrap(err, "failed to create cache namespace dir")
	}
	if err := atomicWrite(path, payload); err != nil {
		return err
	}
	meta := strconv.FormatInt(s.clock.Now().Unix(), 10)
	return atomicWrite(path+".meta", []byte(meta))
}

// Prune removes entries whose creation time is older than age. Entries
// with unreadable metadata are removed as corrupt.
func (s *Store) Prune(age time.Duration) error {
	cutoff := s.clock.Now().Add(-age)
	namespaces, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return zerr.Wrap(err, "failed to read cache root")
	}
	for _, ns := range namespaces {
		if !ns.IsDir() {
			continue
		}
		nsDir := filepath.Join(s.root, ns.Name())
		entries, err := os.ReadDir(nsDir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasSuffix(e.Name(), ".meta") {
				continue
			}
			path := filepath.Join(nsDir, e.Name())
			created, err := s.createdAt(path)
			if err != nil || created.Before(cutoff) {
				_ = os.Remove(path)
				_ = os.Remove(path + ".meta")
			}
		}
	}
	return nil
}

// Clear removes the whole cache tree.
func (s *Store) Clear() error {
	if err := os.RemoveAll(s.root); err != nil {
		return zerr.Wrap(err, "failed to clear cache")
	}
	return nil
}

func (s *Store) entryPath(namespace, fingerprint string) string {
	return filepath.Join(s.root, namespace, fingerprint)
}

func (s *Store) createdAt(entryPath string) (time.Time, error) {
	data, err := os.ReadFile(entryPath + ".meta") //nolint:gosec // path is rooted in the cache dir
	if err != nil {
		return time.Time{}, err
	}
	sec, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0), nil
}

func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return zerr.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return zerr.Wrap(err, "failed to write temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return zerr.Wrap(err, "failed to close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return zerr.Wrap(err, "failed to rename temp file")
	}
	return nil
}

var _ ports.CacheStore = (*Store)(nil)
