// Package toolset implements the tool lifecycle engine: resolving the
// effective tools to concrete versions, computing missing installs,
// reifying them with integrity verification, and uninstalling.
package toolset

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/jonboulle/clockwork"
	"go.trai.ch/zerr"

	"github.com/LuckyWindsck/mise/internal/core/domain"
	"github.com/LuckyWindsck/mise/internal/core/ports"
	"github.com/LuckyWindsck/mise/internal/engine/resolver"
)

// Engine coordinates tool lifecycle operations. It is stateless; all
// state lives on disk under the layout's install tree.
type Engine struct {
	layout   domain.Layout
	registry ports.BackendRegistry
	resolver *resolver.Resolver
	locker   ports.Locker
	logger   ports.Logger
	clock    clockwork.Clock
}

// New creates an Engine.
func New(
	layout domain.Layout,
	registry ports.BackendRegistry,
	res *resolver.Resolver,
	locker ports.Locker,
	logger ports.Logger,
	clock clockwork.Clock,
) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{
		layout:   layout,
		registry: registry,
		resolver: res,
		locker:   locker,
		logger:   logger,
		clock:    clock,
	}
}

// Resolve maps a single request to a concrete version.
func (e *Engine) Resolve(ctx context.Context, req domain.VersionRequest, ec *domain.EffectiveConfig) (domain.ResolvedVersion, error) {
	return e.resolver.Resolve(ctx, req, ec)
}

// ResolveAll resolves every requested version of every effective tool.
// Requests that cannot resolve are skipped with a warning; the first
// resolvable request becomes the active version. For installed active
// versions the backend's exec env is attached.
func (e *Engine) ResolveAll(ctx context.Context, ec *domain.EffectiveConfig) ([]domain.Tool, error) {
	tools := make([]domain.Tool, 0, len(ec.Tools))
	for _, tool := range ec.Tools {
		t := tool
		t.Resolved = nil
		requests := t.Requested
		e.inheritOptions(requests)
		for _, req := range requests {
			rv, err := e.resolver.Resolve(ctx, req, ec)
			if err != nil {
				if e.logger != nil {
					e.logger.Warn("cannot resolve", "tool", req.Tool, "requested", req.Spec, "error", err)
				}
				continue
			}
			t.Resolved = append(t.Resolved, rv)
		}
		if active, ok := t.Active(); ok && e.IsInstalled(active) {
			if err := e.attachExecEnv(&t, active); err != nil && e.logger != nil {
				e.logger.Warn("exec-env failed", "tool", t.Name, "error", err)
			}
		}
		tools = append(tools, t)
	}
	return tools, nil
}

// inheritOptions copies options onto bare requests when the tool has
// exactly one optioned request elsewhere in the set. This keeps
// `mise use tool@ver` consistent with options already in mise.toml.
func (e *Engine) inheritOptions(requests []domain.VersionRequest) {
	var donor domain.ToolOptions
	optioned := 0
	for _, r := range requests {
		if !r.Options.IsEmpty() {
			optioned++
			donor = r.Options
		}
	}
	if optioned != 1 {
		return
	}
	for i := range requests {
		if requests[i].Options.IsEmpty() {
			requests[i].Options = donor.Clone()
		}
	}
}

func (e *Engine) attachExecEnv(t *domain.Tool, active domain.ResolvedVersion) error {
	backend, err := e.registry.Get(t.Backend)
	if err != nil {
		return err
	}
	execEnv, err := backend.ExecEnv(active.Prefix(e.layout))
	if err != nil {
		return err
	}
	t.BinPaths = execEnv.BinPaths
	t.EnvVars = execEnv.EnvVars
	return nil
}

// IsInstalled reports whether a resolved version is present on disk.
// System versions always count as installed; path versions count when the
// directory exists.
func (e *Engine) IsInstalled(rv domain.ResolvedVersion) bool {
	switch rv.Request.Kind() {
	case domain.KindSystem:
		return true
	case domain.KindPath:
		info, err := os.Stat(rv.Request.PathValue())
		return err == nil && info.IsDir()
	}
	info, err := os.Stat(rv.Prefix(e.layout))
	return err == nil && info.IsDir()
}

// MissingVersions lists resolved versions that are not installed yet,
// deduplicated by install prefix.
func (e *Engine) MissingVersions(tools []domain.Tool) []domain.ResolvedVersion {
	var missing []domain.ResolvedVersion
	seen := map[string]bool{}
	for _, t := range tools {
		for _, rv := range t.Resolved {
			prefix := rv.Prefix(e.layout)
			if prefix == "" || seen[prefix] {
				continue
			}
			seen[prefix] = true
			if !e.IsInstalled(rv) {
				missing = append(missing, rv)
			}
		}
	}
	return missing
}

// CheckIntegrity verifies an installed prefix against its recorded
// checksums. A mismatch reports ErrCorrupt; prefixes without a readable
// lockfile or without a recorded checksum pass.
func (e *Engine) CheckIntegrity(rv domain.ResolvedVersion) error {
	prefix := rv.Prefix(e.layout)
	if prefix == "" {
		return nil
	}
	rec, err := readLockfile(prefix)
	if err != nil || rec == nil || rec.Checksum == "" {
		return nil
	}
	actual, err := hashTree(prefix)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrCorrupt.Error()), "prefix", prefix)
	}
	if actual != rec.Checksum {
		err := zerr.With(domain.ErrCorrupt, "tool", rv.Tool)
		err = zerr.With(err, "version", rv.Version)
		err = zerr.With(err, "expected", rec.Checksum)
		return zerr.With(err, "actual", actual)
	}
	return nil
}

// Uninstall removes a version's prefix. It refuses with ErrInUse while
// another process holds the install lock.
func (e *Engine) Uninstall(ctx context.Context, rv domain.ResolvedVersion) error {
	prefix := rv.Prefix(e.layout)
	if prefix == "" {
		return zerr.With(zerr.New("cannot uninstall system version"), "tool", rv.Tool)
	}
	lockPath := prefix + ".lock"
	if e.locker != nil && e.locker.Held(lockPath) {
		return zerr.With(zerr.With(domain.ErrInUse, "tool", rv.Tool), "version", rv.Version)
	}
	backend, err := e.registry.Get(rv.Backend)
	if err == nil {
		if err := backend.Uninstall(ctx, prefix); err != nil && e.logger != nil {
			e.logger.Warn("backend uninstall hook failed", "tool", rv.Tool, "error", err)
		}
	}
	if err := os.RemoveAll(prefix); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to remove install prefix"), "prefix", prefix)
	}
	return nil
}

// ListInstalled scans the install tree and returns every installed
// (backend, tool, version) triple, sorted for stable output.
func (e *Engine) ListInstalled() []domain.ResolvedVersion {
	var out []domain.ResolvedVersion
	root := e.layout.InstallsDir()
	backends, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	for _, b := range backends {
		if !b.IsDir() {
			continue
		}
		tools, err := os.ReadDir(filepath.Join(root, b.Name()))
		if err != nil {
			continue
		}
		for _, t := range tools {
			if !t.IsDir() {
				continue
			}
			versions, err := os.ReadDir(filepath.Join(root, b.Name(), t.Name()))
			if err != nil {
				continue
			}
			for _, v := range versions {
				if !v.IsDir() || isStagingName(v.Name()) {
					continue
				}
				out = append(out, domain.ResolvedVersion{
					Backend: b.Name(),
					Tool:    t.Name(),
					Version: v.Name(),
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tool != out[j].Tool {
			return out[i].Tool < out[j].Tool
		}
		return out[i].Version < out[j].Version
	})
	return out
}

// OutdatedInfo describes a tool whose active version trails the catalog.
type OutdatedInfo struct {
	Tool    string
	Current string
	Latest  string
}

// Outdated reports, per tool with an active installed version, the newest
// version its first request would resolve to today.
func (e *Engine) Outdated(ctx context.Context, tools []domain.Tool, ec *domain.EffectiveConfig) []OutdatedInfo {
	var out []OutdatedInfo
	for _, t := range tools {
		active, ok := t.Active()
		if !ok || active.Request.Kind() != domain.KindVersion && active.Request.Kind() != domain.KindAlias {
			continue
		}
		latest, err := e.resolver.Resolve(ctx, active.Request, ec)
		if err != nil || latest.Version == active.Version {
			continue
		}
		out = append(out, OutdatedInfo{Tool: t.Name, Current: active.Version, Latest: latest.Version})
	}
	return out
}
