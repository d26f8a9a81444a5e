// Package resolver maps symbolic version requests onto concrete versions
// from a backend's catalog.
package resolver

import (
	"context"
	"strings"

	goversion "github.com/hashicorp/go-version"
	"go.trai.ch/zerr"

	"github.com/LuckyWindsck/mise/internal/adapters/cache"
	"github.com/LuckyWindsck/mise/internal/core/domain"
	"github.com/LuckyWindsck/mise/internal/core/ports"
)

// aliasChainLimit bounds alias-to-alias resolution.
const aliasChainLimit = 8

// versionsNamespace is the cache namespace for remote version catalogs.
const versionsNamespace = "remote-versions"

// Resolver resolves version requests against backend catalogs. Catalog
// snapshots are cached; resolution is deterministic for a fixed snapshot.
type Resolver struct {
	registry ports.BackendRegistry
	cache    ports.CacheStore
	logger   ports.Logger
}

// New creates a Resolver.
func New(registry ports.BackendRegistry, cacheStore ports.CacheStore, logger ports.Logger) *Resolver {
	return &Resolver{registry: registry, cache: cacheStore, logger: logger}
}

// Resolve maps one request to a resolved version. Aliases chain through
// the config-provided map first, then the backend-provided one, up to the
// chain limit. "latest" selects the newest non-prerelease catalog entry;
// "latest:<pattern>" behaves like a prefix request for the pattern.
// system/path:/ref: requests bypass the catalog entirely.
func (r *Resolver) Resolve(ctx context.Context, req domain.VersionRequest, ec *domain.EffectiveConfig) (domain.ResolvedVersion, error) {
	switch req.Kind() {
	case domain.KindSystem, domain.KindPath, domain.KindRef:
		return resolved(req, req.Spec), nil
	}

	backend, err := r.registry.Get(req.Backend)
	if err != nil {
		return domain.ResolvedVersion{}, err
	}

	spec, err := r.expandAliases(req, ec, backend)
	if err != nil {
		return domain.ResolvedVersion{}, err
	}

	catalog, err := r.catalog(ctx, backend)
	if err != nil {
		return domain.ResolvedVersion{}, err
	}

	if spec == "latest" {
		v, ok := latestStable(catalog)
		if !ok {
			return domain.ResolvedVersion{}, zerr.With(zerr.With(domain.ErrVersionNotFound, "tool", req.Tool), "requested", req.Spec)
		}
		return resolved(req, v), nil
	}

	// "latest:<pattern>" acts like a prefix request for the pattern.
	if pattern, ok := strings.CutPrefix(spec, "latest:"); ok {
		if v, ok := newestMatching(catalog, pattern); ok {
			return resolved(req, v), nil
		}
		return domain.ResolvedVersion{}, zerr.With(zerr.With(domain.ErrVersionNotFound, "tool", req.Tool), "requested", req.Spec)
	}

	// Exact match first.
	for _, v := range catalog {
		if v == spec {
			return resolved(req, v), nil
		}
	}

	if v, ok := newestMatching(catalog, spec); ok {
		return resolved(req, v), nil
	}

	// A full literal that is not in the catalog resolves to itself and
	// defers to install, which reports VersionNotFound.
	if req.Kind() == domain.KindVersion || isFullVersion(spec) {
		return resolved(req, spec), nil
	}
	return domain.ResolvedVersion{}, zerr.With(zerr.With(domain.ErrVersionNotFound, "tool", req.Tool), "requested", req.Spec)
}

func resolved(req domain.VersionRequest, version string) domain.ResolvedVersion {
	return domain.ResolvedVersion{
		Backend: req.Backend,
		Tool:    req.Tool,
		Version: version,
		Request: req,
	}
}

// expandAliases follows alias chains until the spec stops changing. The
// config-side alias map shadows the backend-side one.
func (r *Resolver) expandAliases(req domain.VersionRequest, ec *domain.EffectiveConfig, backend ports.Backend) (string, error) {
	spec := req.Spec
	backendAliases := backend.Aliases()
	for i := 0; i < aliasChainLimit; i++ {
		next, ok := "", false
		if ec != nil {
			next, ok = ec.AliasFor(req.Tool, spec)
		}
		if !ok {
			next, ok = backendAliases[spec]
		}
		if !ok {
			return spec, nil
		}
		spec = next
	}
	return "", zerr.With(zerr.With(domain.ErrAliasCycle, "tool", req.Tool), "alias", req.Spec)
}

// catalog returns the backend's version list, consulting the cache first.
// Cache entries age out via the prune policy, not per-read checks.
func (r *Resolver) catalog(ctx context.Context, backend ports.Backend) ([]string, error) {
	fp := cache.Fingerprint(backend.Name())
	if r.cache != nil {
		if payload, ok := r.cache.Get(versionsNamespace, fp); ok {
			return splitLines(string(payload)), nil
		}
	}
	versions, err := backend.ListRemoteVersions(ctx)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrBackendUnavailable.Error()), "backend", backend.Name())
	}
	if r.cache != nil {
		if err := r.cache.Put(versionsNamespace, fp, []byte(strings.Join(versions, "\n"))); err != nil && r.logger != nil {
			r.logger.Warn("failed to cache version list", "backend", backend.Name(), "error", err)
		}
	}
	return versions, nil
}

// latestStable picks the newest non-prerelease entry.
func latestStable(catalog []string) (string, bool) {
	for i := len(catalog) - 1; i >= 0; i-- {
		if !isPrerelease(catalog[i]) {
			return catalog[i], true
		}
	}
	return "", false
}

// isPrerelease prefers go-version's parse; for versions the library cannot
// parse, any '-' suffix counts.
func isPrerelease(v string) bool {
	if parsed, err := goversion.NewVersion(v); err == nil {
		return parsed.Prerelease() != ""
	}
	return strings.Contains(v, "-")
}

// newestMatching selects the newest catalog entry extending the prefix.
// The catalog is ordered oldest first, so it scans from the end.
func newestMatching(catalog []string, prefix string) (string, bool) {
	for i := len(catalog) - 1; i >= 0; i-- {
		if matchesPrefix(catalog[i], prefix) {
			return catalog[i], true
		}
	}
	return "", false
}

// matchesPrefix reports whether version extends prefix at a component
// boundary: "3.12" matches "3.12.1" but not "3.120.0".
func matchesPrefix(version, prefix string) bool {
	if !strings.HasPrefix(version, prefix) {
		return false
	}
	rest := version[len(prefix):]
	return rest == "" || rest[0] == '.' || rest[0] == '-' || rest[0] == '+'
}

// isFullVersion reports whether the spec parses as a complete version.
func isFullVersion(spec string) bool {
	_, err := goversion.NewVersion(spec)
	return err == nil
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
