package config

import (
	"os"
	"strconv"

	"go.trai.ch/zerr"

	"github.com/LuckyWindsck/mise/internal/adapters/cache"
	"github.com/LuckyWindsck/mise/internal/core/domain"
	"github.com/LuckyWindsck/mise/internal/core/ports"
)

// Loader implements ports.ConfigLoader. Parsed layers are memoized by
// (path, mtime, size) so repeated loads within one invocation, and the
// hook-env hot path, skip re-parsing.
type Loader struct {
	layout   domain.Layout
	registry ports.BackendRegistry
	logger   ports.Logger
	memo     *cache.Memo[domain.ConfigLayer]
}

// NewLoader creates a Loader.
func NewLoader(layout domain.Layout, registry ports.BackendRegistry, logger ports.Logger) *Loader {
	return &Loader{
		layout:   layout,
		registry: registry,
		logger:   logger,
		memo:     cache.NewMemo[domain.ConfigLayer](),
	}
}

// Load discovers, parses, and merges all configuration in scope for cwd.
//
// Discovery runs twice: the first pass establishes the effective settings,
// which determine whether idiomatic per-language version files (e.g.
// ".python-version") participate; the second pass includes them. Both
// passes are pure functions of the discovered files, so the result is
// deterministic for a fixed filesystem state.
func (l *Loader) Load(cwd string) (*domain.EffectiveConfig, error) {
	files := discover(cwd, l.layout, nil)
	layers := l.parseAll(files)
	ec, err := merge(layers, l.registry)
	if err != nil {
		return nil, err
	}

	enabled := ec.Settings.IdiomaticVersionFileEnableTools
	if len(enabled) == 0 {
		return ec, nil
	}

	idiomatic := l.idiomaticFilenames(enabled)
	if len(idiomatic) == 0 {
		return ec, nil
	}
	files = discover(cwd, l.layout, idiomatic)
	layers = l.parseAll(files)
	return merge(layers, l.registry)
}

func (l *Loader) parseAll(files []discoveredFile) []domain.ConfigLayer {
	layers := make([]domain.ConfigLayer, 0, len(files))
	for seq, f := range files {
		layer := l.parseOne(f, seq)
		if layer.Diagnostic != nil && l.logger != nil {
			l.logger.Warn("ignoring config layer", "path", f.path, "error", layer.Diagnostic)
		}
		layers = append(layers, layer)
	}
	return layers
}

func (l *Loader) parseOne(f discoveredFile, seq int) domain.ConfigLayer {
	info, err := os.Stat(f.path)
	if err != nil {
		return domain.ConfigLayer{Path: f.path, Kind: f.kind, Seq: seq,
			Diagnostic: zerr.Wrap(err, domain.ErrConfigParse.Error())}
	}
	fp := cache.Fingerprint(f.path,
		strconv.FormatInt(info.ModTime().UnixNano(), 10),
		strconv.FormatInt(info.Size(), 10),
		f.tool)
	if layer, ok := l.memo.Get(fp); ok {
		layer.Seq = seq
		return layer
	}

	data, err := os.ReadFile(f.path) //nolint:gosec // discovered config path
	if err != nil {
		return domain.ConfigLayer{Path: f.path, Kind: f.kind, Seq: seq,
			Diagnostic: zerr.Wrap(err, domain.ErrConfigParse.Error())}
	}

	var layer domain.ConfigLayer
	if f.tool != "" {
		layer = ParseIdiomaticLayer(f.path, f.kind, seq, f.tool, data)
	} else {
		layer = ParseLayer(f.path, f.kind, seq, data)
	}
	l.memo.Put(fp, layer)
	return layer
}

// idiomaticFilenames builds filename→tool from the registered backends,
// restricted to the tools the settings enable.
func (l *Loader) idiomaticFilenames(enabled []string) map[string]string {
	on := make(map[string]bool, len(enabled))
	for _, t := range enabled {
		on[t] = true
	}
	out := map[string]string{}
	if l.registry == nil {
		return out
	}
	for _, b := range l.registry.List() {
		short := shortName(b.Name())
		if !on[short] {
			continue
		}
		for _, filename := range b.IdiomaticFilenames() {
			out[filename] = short
		}
	}
	return out
}

func shortName(full string) string {
	for i := 0; i < len(full); i++ {
		if full[i] == ':' {
			return full[i+1:]
		}
	}
	return full
}

var _ ports.ConfigLoader = (*Loader)(nil)
