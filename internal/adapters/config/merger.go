package config

import (
	"go.trai.ch/zerr"

	"github.com/LuckyWindsck/mise/internal/core/domain"
	"github.com/LuckyWindsck/mise/internal/core/ports"
)

// merge folds parsed layers (innermost first) into the effective config.
// Tool lists: the innermost layer mentioning a tool wins the entire list.
// Env: outer layers apply first so inner assignments win. Settings: see
// domain.MergeSettings. Tasks and aliases: union, inner replaces outer.
func merge(layers []domain.ConfigLayer, registry ports.BackendRegistry) (*domain.EffectiveConfig, error) {
	ec := &domain.EffectiveConfig{
		Layers:  layers,
		Tasks:   map[string]domain.TaskDef{},
		Aliases: map[string]map[string]string{},
	}

	var partials []map[string]any
	seenTools := map[string]bool{}

	for _, layer := range layers {
		if layer.Diagnostic != nil {
			if layer.Kind == domain.LayerProject {
				return nil, layer.Diagnostic
			}
			continue
		}
		for _, entry := range layer.Tools {
			if seenTools[entry.Name] {
				continue
			}
			seenTools[entry.Name] = true
			ec.Tools = append(ec.Tools, buildTool(entry, registry))
		}
		if layer.Settings != nil {
			partials = append(partials, layer.Settings)
		}
		for name, def := range layer.Tasks {
			if _, exists := ec.Tasks[name]; !exists {
				ec.Tasks[name] = def
			}
		}
		for tool, aliases := range layer.Aliases {
			m := ec.Aliases[tool]
			if m == nil {
				m = map[string]string{}
				ec.Aliases[tool] = m
			}
			for alias, target := range aliases {
				if _, exists := m[alias]; !exists {
					m[alias] = target
				}
			}
		}
	}

	// Env wants outer-first application; walk layers outermost to
	// innermost and concatenate so later (inner) entries win.
	for i := len(layers) - 1; i >= 0; i-- {
		if layers[i].Diagnostic != nil {
			continue
		}
		ec.Env = append(ec.Env, layers[i].Env...)
	}

	settings, err := domain.MergeSettings(partials)
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrConfigMerge.Error())
	}
	ec.Settings = settings

	// Drop tools the settings disable.
	if len(settings.DisableTools) > 0 {
		disabled := map[string]bool{}
		for _, t := range settings.DisableTools {
			disabled[t] = true
		}
		kept := ec.Tools[:0]
		for _, t := range ec.Tools {
			if !disabled[t.Name] {
				kept = append(kept, t)
			}
		}
		ec.Tools = kept
	}
	return ec, nil
}

func buildTool(entry domain.ToolEntry, registry ports.BackendRegistry) domain.Tool {
	full := entry.Name
	if registry != nil {
		full = registry.FullName(entry.Name)
	}
	requests := make([]domain.VersionRequest, len(entry.Requests))
	copy(requests, entry.Requests)
	for i := range requests {
		requests[i].Backend = full
		requests[i].Tool = entry.Name
	}
	return domain.Tool{
		Backend:   full,
		Name:      entry.Name,
		Requested: requests,
	}
}
