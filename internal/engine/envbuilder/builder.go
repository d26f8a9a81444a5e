// Package envbuilder computes the activation environment: tool bin paths
// prepended to PATH, exported tool and config variables, and the shell
// delta hook-env emits on every prompt.
package envbuilder

import (
	"bytes"
	"encoding/gob"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"go.trai.ch/zerr"

	"github.com/LuckyWindsck/mise/internal/adapters/cache"
	"github.com/LuckyWindsck/mise/internal/build"
	"github.com/LuckyWindsck/mise/internal/core/domain"
	"github.com/LuckyWindsck/mise/internal/core/ports"
)

// envNamespace is the cache namespace for built contributions.
const envNamespace = "env"

// Builder computes environment contributions and their shell deltas.
type Builder struct {
	layout domain.Layout
	cache  ports.CacheStore
	logger ports.Logger
}

// New creates a Builder.
func New(layout domain.Layout, cacheStore ports.CacheStore, logger ports.Logger) *Builder {
	return &Builder{layout: layout, cache: cacheStore, logger: logger}
}

// BuildContribution assembles the manager's environment contribution from
// the effective config and resolved tools: bin paths in tool-declaration
// order (innermost layer first), tool exec-env vars, then the config env
// block evaluated left to right with config-side winning on conflict.
func (b *Builder) BuildContribution(ec *domain.EffectiveConfig, tools []domain.Tool) domain.EnvContribution {
	c := domain.EnvContribution{Env: map[string]string{}}

	for _, t := range tools {
		active, ok := t.Active()
		if !ok {
			continue
		}
		prefix := active.Prefix(b.layout)
		if prefix == "" {
			// System versions contribute nothing; PATH already has them.
			continue
		}
		for _, bin := range t.BinPaths {
			c.Paths = append(c.Paths, filepath.Join(prefix, bin))
		}
		for k, v := range t.EnvVars {
			c.Env[k] = v
		}
	}

	// Config env applies last so it overrides backend-side vars; entries
	// are already ordered outermost first, so inner layers win here.
	for _, entry := range ec.Env {
		if entry.Remove {
			delete(c.Env, entry.Key)
			continue
		}
		c.Env[entry.Key] = entry.Value
	}
	for k, v := range ec.Settings.Env {
		if _, exists := c.Env[k]; !exists {
			c.Env[k] = v
		}
	}
	return c
}

// Fingerprint identifies a contribution build: the discovered config files
// (path, mtime, size), the active tool prefixes, and the manager version.
func (b *Builder) Fingerprint(ec *domain.EffectiveConfig, tools []domain.Tool) string {
	parts := []string{build.Version}
	for _, layer := range ec.Layers {
		parts = append(parts, layer.Path)
		if info, err := os.Stat(layer.Path); err == nil {
			parts = append(parts,
				strconv.FormatInt(info.ModTime().UnixNano(), 10),
				strconv.FormatInt(info.Size(), 10))
		}
	}
	for _, t := range tools {
		if active, ok := t.Active(); ok {
			parts = append(parts, active.Prefix(b.layout))
		}
	}
	return cache.Fingerprint(parts...)
}

// Lookup fetches a cached contribution. Corrupt payloads are a miss.
func (b *Builder) Lookup(fingerprint string) (domain.EnvContribution, bool) {
	if b.cache == nil {
		return domain.EnvContribution{}, false
	}
	payload, ok := b.cache.Get(envNamespace, fingerprint)
	if !ok {
		return domain.EnvContribution{}, false
	}
	var c domain.EnvContribution
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&c); err != nil {
		return domain.EnvContribution{}, false
	}
	return c, true
}

// Store caches a contribution.
func (b *Builder) Store(fingerprint string, c domain.EnvContribution) error {
	if b.cache == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c); err != nil {
		return zerr.Wrap(err, "failed to encode env contribution")
	}
	return b.cache.Put(envNamespace, fingerprint, buf.Bytes())
}

// Result is a computed activation delta.
type Result struct {
	// Path is the full new PATH value.
	Path string
	// Ops transforms the previous manager-managed environment into the
	// new one, sentinel included.
	Ops []domain.EnvOp
	// Contribution is the new contribution, already encoded into Ops'
	// sentinel op.
	Contribution domain.EnvContribution
}

// Delta computes the shell instructions that move a shell from its
// recorded previous contribution (decoded from the sentinel inside
// baseEnv) to the new contribution. The previous contribution's PATH
// entries are stripped before the new ones are prepended, so repeated
// prompts do not accumulate entries.
func (b *Builder) Delta(newC domain.EnvContribution, baseEnv map[string]string) (*Result, error) {
	oldC := domain.DecodeContribution(baseEnv[domain.SentinelVar])

	inherited := splitPath(baseEnv["PATH"]).strip(oldC.Paths)
	newPath := inherited.prepend(newC.Paths).String()
	oldPath := baseEnv["PATH"]

	oldVars := map[string]string{"PATH": oldPath}
	for k, v := range oldC.Env {
		oldVars[k] = v
	}
	if s, ok := baseEnv[domain.SentinelVar]; ok {
		oldVars[domain.SentinelVar] = s
	}

	// gob does not order map keys, so an unchanged contribution could
	// re-encode to different bytes; reuse the shell's sentinel instead of
	// emitting a spurious set on every prompt.
	sentinel := baseEnv[domain.SentinelVar]
	if !contributionsEqual(oldC, newC) {
		var err error
		sentinel, err = newC.Encode()
		if err != nil {
			return nil, err
		}
	}
	newVars := map[string]string{
		"PATH":             newPath,
		domain.SentinelVar: sentinel,
	}
	for k, v := range newC.Env {
		newVars[k] = v
	}

	return &Result{
		Path:         newPath,
		Ops:          domain.DiffEnv(oldVars, newVars),
		Contribution: newC,
	}, nil
}

func contributionsEqual(a, b domain.EnvContribution) bool {
	return slices.Equal(a.Paths, b.Paths) && maps.Equal(a.Env, b.Env)
}
