package app

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
	"go.trai.ch/zerr"

	"github.com/LuckyWindsck/mise/internal/core/domain"
)

// pinTool sets tools.<name> = <spec> in the given config file, creating
// the file when absent. The write is atomic and keeps other sections.
func pinTool(path, name, spec string) error {
	doc := map[string]any{}
	data, err := os.ReadFile(path) //nolint:gosec // config path chosen by the invocation
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return zerr.Wrap(err, "failed to read config file")
	}
	if len(data) > 0 {
		if err := toml.Unmarshal(data, &doc); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrConfigParse.Error()), "path", path)
		}
	}

	tools, ok := doc["tools"].(map[string]any)
	if !ok {
		tools = map[string]any{}
	}
	tools[name] = spec
	doc["tools"] = tools

	out, err := toml.Marshal(doc)
	if err != nil {
		return zerr.Wrap(err, "failed to marshal config file")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return zerr.Wrap(err, "failed to create config dir")
	}
	tmp, err := os.CreateTemp(dir, ".mise-use-*")
	if err != nil {
		return zerr.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(out); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return zerr.Wrap(err, "failed to write temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return zerr.Wrap(err, "failed to close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return zerr.Wrap(err, "failed to replace config file")
	}
	return nil
}
