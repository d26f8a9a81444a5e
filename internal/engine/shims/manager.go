// Package shims reconciles the shims directory against the active tools
// and resolves shim dispatch targets.
package shims

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.trai.ch/zerr"

	"github.com/LuckyWindsck/mise/internal/core/domain"
	"github.com/LuckyWindsck/mise/internal/core/ports"
)

// signature marks a file as manager-owned. Reconciliation only ever
// deletes files carrying it.
const signature = "# mise-shim"

const reconcileLock = ".mise-shims.lock"

// Manager reconciles and resolves shims.
type Manager struct {
	layout domain.Layout
	locker ports.Locker
	logger ports.Logger
}

// New creates a Manager.
func New(layout domain.Layout, locker ports.Locker, logger ports.Logger) *Manager {
	return &Manager{layout: layout, locker: locker, logger: logger}
}

// Desired computes the shim names for the active tools: the union of
// executable filenames across their bin dirs, minus the configured
// exclusion patterns.
func (m *Manager) Desired(tools []domain.Tool, exclusions []string) []string {
	seen := map[string]bool{}
	var names []string
	for _, t := range tools {
		active, ok := t.Active()
		if !ok {
			continue
		}
		prefix := active.Prefix(m.layout)
		if prefix == "" {
			continue
		}
		for _, bin := range t.BinPaths {
			entries, err := os.ReadDir(filepath.Join(prefix, bin))
			if err != nil {
				continue
			}
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				info, err := e.Info()
				if err != nil || info.Mode()&0o111 == 0 {
					continue
				}
				name := e.Name()
				if seen[name] || excluded(name, exclusions) {
					continue
				}
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

func excluded(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

// Reconcile makes the shims directory contain exactly the desired names:
// missing shims are created, stale manager-owned shims removed, and
// foreign files left alone. A desired name occupied by a foreign file is
// a ShimConflict; reconciliation continues past it and reports all
// conflicts together. The directory-level lock serializes reconciliations
// across processes.
func (m *Manager) Reconcile(tools []domain.Tool, exclusions []string) error {
	dir := m.layout.ShimsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return zerr.Wrap(err, "failed to create shims dir")
	}

	release, err := m.locker.Acquire(filepath.Join(dir, reconcileLock))
	if err != nil {
		return err
	}
	defer release()

	desired := map[string]bool{}
	for _, name := range m.Desired(tools, exclusions) {
		desired[name] = true
	}

	var errs error

	entries, err := os.ReadDir(dir)
	if err != nil {
		return zerr.Wrap(err, "failed to read shims dir")
	}
	existing := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		if name == reconcileLock {
			continue
		}
		path := filepath.Join(dir, name)
		managed := m.isShim(path)
		switch {
		case desired[name] && managed:
			existing[name] = true
		case desired[name] && !managed:
			errs = errors.Join(errs, zerr.With(domain.ErrShimConflict, "path", path))
			existing[name] = true // leave the foreign file alone
		case !desired[name] && managed:
			if err := os.Remove(path); err != nil {
				errs = errors.Join(errs, zerr.Wrap(err, "failed to remove shim"))
			}
		}
	}

	for name := range desired {
		if existing[name] {
			continue
		}
		if err := m.writeShim(filepath.Join(dir, name), name); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

// writeShim creates one shim executable re-entering the manager.
func (m *Manager) writeShim(path, name string) error {
	content := "#!/bin/sh\n" + signature + "\nexec mise x --shim " + name + " -- \"$@\"\n"
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil { //nolint:gosec // shims must be executable
		return zerr.With(zerr.Wrap(err, "failed to write shim"), "shim", name)
	}
	return nil
}

// isShim reports whether path carries the manager's shim signature.
func (m *Manager) isShim(path string) bool {
	data, err := os.ReadFile(path) //nolint:gosec // path inside the shims dir
	if err != nil {
		return false
	}
	return strings.Contains(string(data), signature)
}

// Which finds the tool providing a binary name: the first active installed
// tool whose bin dirs contain an executable with that name. Shim dispatch
// and `x` use it to pick the target.
func (m *Manager) Which(binName string, tools []domain.Tool) (domain.Tool, string, bool) {
	for _, t := range tools {
		active, ok := t.Active()
		if !ok {
			continue
		}
		prefix := active.Prefix(m.layout)
		if prefix == "" {
			continue
		}
		for _, bin := range t.BinPaths {
			candidate := filepath.Join(prefix, bin, binName)
			info, err := os.Stat(candidate)
			if err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
				return t, candidate, true
			}
		}
	}
	return domain.Tool{}, "", false
}
