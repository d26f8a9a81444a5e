// Package backend implements the backend registry and the manifest-driven
// backend: a provider whose catalog, checksums, and install payloads live
// under the plugins directory. Remote transports are out of scope; a
// plugin's manifest is the catalog.
package backend

import (
	"os"
	"path/filepath"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"

	"github.com/LuckyWindsck/mise/internal/core/domain"
)

// manifestFile is the plugin.yaml describing one backend.
type manifestFile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Versions is the ordered catalog, oldest first. The ordering is
	// backend-defined; the core never re-sorts it.
	Versions []string `yaml:"versions"`

	// Aliases maps symbolic names ("lts") to catalog versions.
	Aliases map[string]string `yaml:"aliases"`

	// Checksums maps a version to the expected content checksum of its
	// installed prefix.
	Checksums map[string]string `yaml:"checksums"`

	// Bins lists bin dirs relative to the install prefix.
	Bins []string `yaml:"bins"`

	// Env lists exported vars; "{prefix}" in a value expands to the
	// install prefix.
	Env map[string]string `yaml:"env"`

	// IdiomaticFilenames lists per-language version file names.
	IdiomaticFilenames []string `yaml:"idiomatic_filenames"`

	// Dependencies names tools that must install before this one.
	Dependencies []string `yaml:"dependencies"`

	// VerifyCommand, when set, is run inside a fresh install to probe
	// it, e.g. ["bin/zig", "version"]. The first element is relative to
	// the prefix.
	VerifyCommand []string `yaml:"verify_command"`
}

const manifestName = "plugin.yaml"

// loadManifest reads a plugin dir's manifest.
func loadManifest(dir string) (*manifestFile, error) {
	path := filepath.Join(dir, manifestName)
	data, err := os.ReadFile(path) //nolint:gosec // path is rooted in the plugins dir
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrBackendUnavailable.Error()), "path", path)
	}
	var m manifestFile
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrBackendUnavailable.Error()), "path", path)
	}
	if m.Name == "" {
		return nil, zerr.With(zerr.New("plugin manifest missing name"), "path", path)
	}
	return &m, nil
}
