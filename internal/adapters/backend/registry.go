package backend

import (
	"os"
	"sort"
	"strings"

	"go.trai.ch/zerr"

	"github.com/LuckyWindsck/mise/internal/core/domain"
	"github.com/LuckyWindsck/mise/internal/core/ports"
)

// Registry implements ports.BackendRegistry. It is built once at startup
// by scanning the plugins directory and is immutable afterwards.
type Registry struct {
	backends []ports.Backend
	byName   map[string]ports.Backend
	byShort  map[string]string
}

// NewRegistry builds a registry from explicit backends, in order. Later
// registrations of the same full name are rejected.
func NewRegistry(backends ...ports.Backend) (*Registry, error) {
	r := &Registry{
		byName:  map[string]ports.Backend{},
		byShort: map[string]string{},
	}
	for _, b := range backends {
		if err := r.add(b); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// LoadRegistry scans the plugins directory: every subdirectory with a
// plugin.yaml becomes a backend. Directories without a manifest are
// skipped with a warning.
func LoadRegistry(layout domain.Layout, logger ports.Logger) (*Registry, error) {
	entries, err := os.ReadDir(layout.PluginsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return NewRegistry()
		}
		return nil, zerr.Wrap(err, "failed to read plugins dir")
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var backends []ports.Backend
	for _, name := range names {
		dir := layout.PluginsDir() + string(os.PathSeparator) + name
		b, err := newManifestBackend(dir)
		if err != nil {
			if logger != nil {
				logger.Warn("skipping plugin", "dir", dir, "error", err)
			}
			continue
		}
		backends = append(backends, b)
	}
	return NewRegistry(backends...)
}

func (r *Registry) add(b ports.Backend) error {
	name := b.Name()
	if _, exists := r.byName[name]; exists {
		return zerr.With(zerr.New("backend already registered"), "backend", name)
	}
	r.backends = append(r.backends, b)
	r.byName[name] = b
	// First registration of a short name wins; core:* takes precedence
	// by sorting ("asdf" < "core" < "vfox") being irrelevant here — the
	// explicit full name always disambiguates.
	short := shortOf(name)
	if _, exists := r.byShort[short]; !exists || strings.HasPrefix(name, "core:") {
		r.byShort[short] = name
	}
	return nil
}

// Get looks up a backend by full or short name.
func (r *Registry) Get(name string) (ports.Backend, error) {
	if b, ok := r.byName[name]; ok {
		return b, nil
	}
	if full, ok := r.byShort[name]; ok {
		return r.byName[full], nil
	}
	return nil, zerr.With(domain.ErrBackendUnavailable, "backend", name)
}

// List returns all backends in registration order.
func (r *Registry) List() []ports.Backend {
	out := make([]ports.Backend, len(r.backends))
	copy(out, r.backends)
	return out
}

// FullName expands a short tool name; names already carrying a backend
// prefix pass through, and unknown shorts return unchanged so the caller
// surfaces BackendUnavailable at use time.
func (r *Registry) FullName(short string) string {
	if strings.Contains(short, ":") {
		return short
	}
	if full, ok := r.byShort[short]; ok {
		return full
	}
	return short
}

func shortOf(full string) string {
	if i := strings.Index(full, ":"); i >= 0 {
		return full[i+1:]
	}
	return full
}

var _ ports.BackendRegistry = (*Registry)(nil)
