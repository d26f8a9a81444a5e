// Package settings implements the typed settings store: schema-validated
// get/set/add/remove/unset with atomic persistence to the innermost
// writable config file.
package settings

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"go.trai.ch/zerr"

	"github.com/LuckyWindsck/mise/internal/core/domain"
)

// Store reads and rewrites the `[settings]` table of one config file.
// Rewrites are atomic (temp file + rename) and keep the file's other
// sections intact.
type Store struct {
	path string
}

// NewStore creates a Store for the given config file path. The file need
// not exist yet; the first write creates it.
func NewStore(path string) *Store {
	return &Store{path: filepath.Clean(path)}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Get returns the persisted value for a key, or (nil, false) when the file
// does not set it.
func (s *Store) Get(key string) (any, bool, error) {
	if _, ok := domain.SettingsSchema[key]; !ok {
		return nil, false, zerr.With(zerr.New("unknown setting"), "key", key)
	}
	doc, err := s.read()
	if err != nil {
		return nil, false, err
	}
	table := settingsTable(doc)
	v, ok := table[key]
	return v, ok, nil
}

// Set assigns a scalar or replaces a list/map value wholesale. The value
// string is coerced according to the key's kind.
func (s *Store) Set(key, value string) error {
	kind, ok := domain.SettingsSchema[key]
	if !ok {
		return zerr.With(zerr.New("unknown setting"), "key", key)
	}
	coerced, err := coerce(kind, value)
	if err != nil {
		return zerr.With(err, "key", key)
	}
	return s.update(func(table map[string]any) bool {
		table[key] = coerced
		return true
	})
}

// Add appends values to a list-typed setting. The value splits on commas;
// entries already present are skipped, and new entries append in argument
// order. Adding only existing values is a no-op that does not rewrite the
// file.
func (s *Store) Add(key, value string) error {
	if err := s.requireList(key); err != nil {
		return err
	}
	return s.update(func(table map[string]any) bool {
		current := toStringList(table[key])
		seen := make(map[string]bool, len(current))
		for _, v := range current {
			seen[v] = true
		}
		changed := false
		for _, v := range splitList(value) {
			if seen[v] {
				continue
			}
			seen[v] = true
			current = append(current, v)
			changed = true
		}
		if changed {
			table[key] = current
		}
		return changed
	})
}

// Remove deletes values from a list-typed setting. Removing an absent
// value is a no-op.
func (s *Store) Remove(key, value string) error {
	if err := s.requireList(key); err != nil {
		return err
	}
	return s.update(func(table map[string]any) bool {
		current := toStringList(table[key])
		drop := make(map[string]bool)
		for _, v := range splitList(value) {
			drop[v] = true
		}
		kept := current[:0]
		for _, v := range current {
			if !drop[v] {
				kept = append(kept, v)
			}
		}
		if len(kept) == len(current) {
			return false
		}
		table[key] = kept
		return true
	})
}

// Unset removes a key entirely.
func (s *Store) Unset(key string) error {
	if _, ok := domain.SettingsSchema[key]; !ok {
		return zerr.With(zerr.New("unknown setting"), "key", key)
	}
	return s.update(func(table map[string]any) bool {
		if _, ok := table[key]; !ok {
			return false
		}
		delete(table, key)
		return true
	})
}

func (s *Store) requireList(key string) error {
	kind, ok := domain.SettingsSchema[key]
	if !ok {
		return zerr.With(zerr.New("unknown setting"), "key", key)
	}
	if kind != domain.SettingList {
		return zerr.With(zerr.New("setting is not list-typed"), "key", key)
	}
	return nil
}

// update loads the document, applies fn to the settings table, and
// persists only when fn reports a change.
func (s *Store) update(fn func(table map[string]any) bool) error {
	doc, err := s.read()
	if err != nil {
		return err
	}
	table := settingsTable(doc)
	if !fn(table) {
		return nil
	}
	if len(table) == 0 {
		delete(doc, "settings")
	} else {
		doc["settings"] = table
	}
	return s.write(doc)
}

func (s *Store) read() (map[string]any, error) {
	doc := map[string]any{}
	data, err := os.ReadFile(s.path) //nolint:gosec // config path chosen by the invocation
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return doc, nil
		}
		return nil, zerr.Wrap(err, "failed to read config file")
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigParse.Error()), "path", s.path)
	}
	return doc, nil
}

func (s *Store) write(doc map[string]any) error {
	data, err := toml.Marshal(doc)
	if err != nil {
		return zerr.Wrap(err, "failed to marshal config file")
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return zerr.Wrap(err, "failed to create config dir")
	}
	tmp, err := os.CreateTemp(dir, ".mise-settings-*")
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
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return zerr.Wrap(err, "failed to replace config file")
	}
	return nil
}

func settingsTable(doc map[string]any) map[string]any {
	if t, ok := doc["settings"].(map[string]any); ok {
		return t
	}
	return map[string]any{}
}

func toStringList(v any) []string {
	list, err := domain.CoerceStringList(v)
	if err != nil || v == nil {
		return nil
	}
	return list
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	seen := map[string]bool{}
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func coerce(kind domain.SettingKind, value string) (any, error) {
	switch kind {
	case domain.SettingBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, zerr.New("expected bool")
		}
		return b, nil
	case domain.SettingInt:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, zerr.New("expected integer")
		}
		return n, nil
	case domain.SettingDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return nil, zerr.Wrap(err, "expected duration")
		}
		return value, nil
	case domain.SettingList:
		return splitList(value), nil
	case domain.SettingMap:
		m := map[string]string{}
		for _, pair := range splitList(value) {
			k, v, ok := strings.Cut(pair, "=")
			if !ok {
				return nil, zerr.New("expected k=v pairs")
			}
			m[k] = v
		}
		return m, nil
	default:
		return value, nil
	}
}
