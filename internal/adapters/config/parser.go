// Package config implements discovery, parsing, and merging of the layered
// configuration files into the effective view.
package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"go.trai.ch/zerr"

	"github.com/LuckyWindsck/mise/internal/core/domain"
)

// ParseLayer parses one TOML config file into an immutable layer. Parse
// failures are layer-local: the returned layer carries the diagnostic and
// contributes nothing to the merge.
func ParseLayer(path string, kind domain.LayerKind, seq int, data []byte) domain.ConfigLayer {
	layer := domain.ConfigLayer{Path: path, Kind: kind, Seq: seq}

	var file configFile
	if err := toml.Unmarshal(data, &file); err != nil {
		layer.Diagnostic = zerr.With(zerr.Wrap(err, domain.ErrConfigParse.Error()), "path", path)
		return layer
	}

	raw := string(data)

	layer.Tools = parseTools(file.Tools, raw)
	layer.Env = parseEnv(file.Env, raw)
	layer.Settings = file.Settings
	layer.Tasks = parseTasks(file.Tasks, path, &layer)
	layer.Aliases = parseAliases(file.Alias)
	return layer
}

// ParseIdiomaticLayer parses a per-language version file (e.g.
// ".python-version"): the trimmed first line is the version request for the
// tool implied by the filename.
func ParseIdiomaticLayer(path string, kind domain.LayerKind, seq int, tool string, data []byte) domain.ConfigLayer {
	layer := domain.ConfigLayer{Path: path, Kind: kind, Seq: seq}
	spec := strings.TrimSpace(strings.SplitN(string(data), "\n", 2)[0])
	if spec == "" {
		return layer
	}
	layer.Tools = []domain.ToolEntry{{
		Name:     tool,
		Requests: []domain.VersionRequest{{Tool: tool, Spec: spec}},
	}}
	return layer
}

// parseTools coerces the tools table. Values are a version string, an
// array of version strings, or a table with version + options. Order
// follows the declaration order in the file.
func parseTools(tools map[string]any, raw string) []domain.ToolEntry {
	entries := make([]domain.ToolEntry, 0, len(tools))
	for name, value := range tools {
		reqs := parseToolValue(name, value)
		if len(reqs) == 0 {
			continue
		}
		entries = append(entries, domain.ToolEntry{Name: name, Requests: reqs})
	}
	sortByAppearance(raw, entries, func(e domain.ToolEntry) string { return e.Name })
	return entries
}

func parseToolValue(name string, value any) []domain.VersionRequest {
	switch v := value.(type) {
	case string:
		return []domain.VersionRequest{{Tool: name, Spec: v}}
	case []any:
		reqs := make([]domain.VersionRequest, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				reqs = append(reqs, domain.VersionRequest{Tool: name, Spec: s})
			}
		}
		return reqs
	case map[string]any:
		var dto toolTableDTO
		if s, ok := v["version"].(string); ok {
			dto.Version = s
		}
		opts := domain.ToolOptions{}
		if m, ok := v["options"].(map[string]any); ok {
			for k, ov := range m {
				if s, ok := ov.(string); ok {
					opts[k] = s
				}
			}
		}
		// Bare extra keys on the table are options too (virtualenv = "…").
		for k, ov := range v {
			if k == "version" || k == "options" {
				continue
			}
			if s, ok := ov.(string); ok {
				opts[k] = s
			}
		}
		if dto.Version == "" {
			return nil
		}
		return []domain.VersionRequest{{Tool: name, Spec: dto.Version, Options: opts}}
	default:
		return nil
	}
}

// parseEnv coerces the env table into ordered entries. A `false` value
// unsets the variable; everything else stringifies.
func parseEnv(env map[string]any, raw string) []domain.EnvEntry {
	entries := make([]domain.EnvEntry, 0, len(env))
	for key, value := range env {
		switch v := value.(type) {
		case string:
			entries = append(entries, domain.EnvEntry{Key: key, Value: v})
		case bool:
			if !v {
				entries = append(entries, domain.EnvEntry{Key: key, Remove: true})
			} else {
				entries = append(entries, domain.EnvEntry{Key: key, Value: "true"})
			}
		case int64:
			entries = append(entries, domain.EnvEntry{Key: key, Value: strconv.FormatInt(v, 10)})
		default:
			entries = append(entries, domain.EnvEntry{Key: key, Value: fmt.Sprint(v)})
		}
	}
	sortByAppearance(raw, entries, func(e domain.EnvEntry) string { return e.Key })
	return entries
}

func parseTasks(tasks map[string]taskDTO, path string, layer *domain.ConfigLayer) map[string]domain.TaskDef {
	if len(tasks) == 0 {
		return nil
	}
	out := make(map[string]domain.TaskDef, len(tasks))
	for name, dto := range tasks {
		def := domain.TaskDef{
			Name:        name,
			Run:         coerceStringOrList(dto.Run),
			Depends:     coerceStringOrList(dto.Depends),
			DependsPost: coerceStringOrList(dto.DependsPost),
			Env:         dto.Env,
			Dir:         dto.Dir,
			Sources:     dto.Sources,
			Outputs:     dto.Outputs,
			Description: dto.Description,
			Hide:        dto.Hide,
			Raw:         dto.Raw,
		}
		if len(def.Run) == 0 {
			layer.Diagnostic = zerr.With(zerr.With(domain.ErrConfigParse, "path", path), "task", name)
			continue
		}
		out[name] = def
	}
	return out
}

func coerceStringOrList(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return []string{val}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func parseAliases(alias map[string]any) map[string]map[string]string {
	if len(alias) == 0 {
		return nil
	}
	out := make(map[string]map[string]string, len(alias))
	for tool, v := range alias {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		inner := make(map[string]string, len(m))
		for a, target := range m {
			if s, ok := target.(string); ok {
				inner[a] = s
			}
		}
		out[tool] = inner
	}
	return out
}

// sortByAppearance orders entries by the first byte position of their key
// in the raw file, falling back to name order for keys that never appear
// literally (e.g. quoted keys). TOML decoding loses declaration order;
// declaration order is load-bearing for PATH assembly.
func sortByAppearance[T any](raw string, entries []T, key func(T) string) {
	pos := func(name string) int {
		if i := strings.Index(raw, "\n"+name); i >= 0 {
			return i
		}
		if strings.HasPrefix(raw, name) {
			return 0
		}
		if i := strings.Index(raw, name); i >= 0 {
			return i
		}
		return len(raw)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		pi, pj := pos(key(entries[i])), pos(key(entries[j]))
		if pi != pj {
			return pi < pj
		}
		return key(entries[i]) < key(entries[j])
	})
}
