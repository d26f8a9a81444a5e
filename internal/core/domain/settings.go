package domain

import (
	"fmt"
	"runtime"
	"time"

	"go.trai.ch/zerr"
)

// SettingKind is the value type of a settings key.
type SettingKind int

const (
	// SettingBool holds a boolean.
	SettingBool SettingKind = iota
	// SettingInt holds an integer.
	SettingInt
	// SettingString holds a string.
	SettingString
	// SettingDuration holds a Go duration string.
	SettingDuration
	// SettingList holds a list of strings.
	SettingList
	// SettingMap holds a string-to-string map.
	SettingMap
)

// SettingsSchema maps each known settings key to its kind. Unknown keys in
// a config layer are ignored, not errors.
var SettingsSchema = map[string]SettingKind{
	"jobs":                                SettingInt,
	"raw":                                 SettingBool,
	"experimental":                        SettingBool,
	"task_output":                         SettingString,
	"cache_prune_age":                     SettingDuration,
	"probe_timeout":                       SettingDuration,
	"install_timeout":                     SettingDuration,
	"disable_hints":                       SettingList,
	"disable_tools":                       SettingList,
	"idiomatic_version_file_enable_tools": SettingList,
	"shim_exclusions":                     SettingList,
	"env":                                 SettingMap,
}

// Settings is the typed, validated settings view after merging.
type Settings struct {
	Jobs           int
	Raw            bool
	Experimental   bool
	TaskOutput     string
	CachePruneAge  time.Duration
	ProbeTimeout   time.Duration
	InstallTimeout time.Duration

	DisableHints                    []string
	DisableTools                    []string
	IdiomaticVersionFileEnableTools []string
	ShimExclusions                  []string

	Env map[string]string
}

// DefaultSettings returns the baseline before any layer applies.
func DefaultSettings() Settings {
	return Settings{
		Jobs:           runtime.NumCPU(),
		CachePruneAge:  defaultCachePruneAge,
		ProbeTimeout:   10 * time.Second,
		InstallTimeout: 180 * time.Second,
		Env:            map[string]string{},
	}
}

// MergeSettings merges partial settings maps ordered innermost first.
// Scalars: nearest wins. Lists: concatenate then dedupe, preserving first
// occurrence. Maps: union, inner key wins.
func MergeSettings(partials []map[string]any) (Settings, error) {
	s := DefaultSettings()

	scalarSet := map[string]bool{}
	listSeen := map[string]map[string]bool{}

	for _, partial := range partials {
		for key, raw := range partial {
			kind, known := SettingsSchema[key]
			if !known {
				continue
			}
			switch kind {
			case SettingList:
				vals, err := CoerceStringList(raw)
				if err != nil {
					return s, zerr.With(zerr.Wrap(err, "invalid settings value"), "key", key)
				}
				seen := listSeen[key]
				if seen == nil {
					seen = map[string]bool{}
					listSeen[key] = seen
				}
				for _, v := range vals {
					if seen[v] {
						continue
					}
					seen[v] = true
					s.appendList(key, v)
				}
			case SettingMap:
				m, err := coerceStringMap(raw)
				if err != nil {
					return s, zerr.With(zerr.Wrap(err, "invalid settings value"), "key", key)
				}
				for k, v := range m {
					if _, exists := s.Env[k]; !exists {
						s.Env[k] = v
					}
				}
			default:
				if scalarSet[key] {
					continue
				}
				if err := s.setScalar(key, kind, raw); err != nil {
					return s, err
				}
				scalarSet[key] = true
			}
		}
	}
	if s.Jobs < 1 {
		s.Jobs = 1
	}
	return s, nil
}

func (s *Settings) appendList(key, v string) {
	switch key {
	case "disable_hints":
		s.DisableHints = append(s.DisableHints, v)
	case "disable_tools":
		s.DisableTools = append(s.DisableTools, v)
	case "idiomatic_version_file_enable_tools":
		s.IdiomaticVersionFileEnableTools = append(s.IdiomaticVersionFileEnableTools, v)
	case "shim_exclusions":
		s.ShimExclusions = append(s.ShimExclusions, v)
	}
}

func (s *Settings) setScalar(key string, kind SettingKind, raw any) error {
	switch kind {
	case SettingBool:
		b, ok := raw.(bool)
		if !ok {
			return zerr.With(zerr.New("expected bool"), "key", key)
		}
		switch key {
		case "raw":
			s.Raw = b
		case "experimental":
			s.Experimental = b
		}
	case SettingInt:
		n, err := coerceInt(raw)
		if err != nil {
			return zerr.With(err, "key", key)
		}
		if key == "jobs" {
			s.Jobs = n
		}
	case SettingString:
		str, ok := raw.(string)
		if !ok {
			return zerr.With(zerr.New("expected string"), "key", key)
		}
		if key == "task_output" {
			s.TaskOutput = str
		}
	case SettingDuration:
		str, ok := raw.(string)
		if !ok {
			return zerr.With(zerr.New("expected duration string"), "key", key)
		}
		d, err := time.ParseDuration(str)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "invalid duration"), "key", key)
		}
		switch key {
		case "cache_prune_age":
			s.CachePruneAge = d
		case "probe_timeout":
			s.ProbeTimeout = d
		case "install_timeout":
			s.InstallTimeout = d
		}
	}
	return nil
}

// CoerceStringList converts a decoded TOML value into a string list.
func CoerceStringList(raw any) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return v, nil
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, zerr.New(fmt.Sprintf("expected string list element, got %T", item))
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, zerr.New(fmt.Sprintf("expected string list, got %T", raw))
	}
}

func coerceStringMap(raw any) (map[string]string, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, zerr.New(fmt.Sprintf("expected table, got %T", raw))
	}
	out := make(map[string]string, len(m))
	for k, item := range m {
		str, ok := item.(string)
		if !ok {
			return nil, zerr.New(fmt.Sprintf("expected string value for %q, got %T", k, item))
		}
		out[k] = str
	}
	return out, nil
}

func coerceInt(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, zerr.New(fmt.Sprintf("expected integer, got %T", raw))
	}
}
