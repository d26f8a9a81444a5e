// Package domain contains the core domain models for the tool manager:
// version requests, configuration layers, settings, tasks, and the on-disk
// layout shared by every component.
package domain

import (
	"os"
	"path/filepath"
	"time"
)

// Layout describes the on-disk directories the manager operates on. It is
// built once per invocation from the environment and passed explicitly; the
// logger's MISE_LOG_LEVEL is the only MISE_* variable read elsewhere.
type Layout struct {
	DataDir   string
	ConfigDir string
	CacheDir  string

	CachePruneAge time.Duration
	TaskOutput    string
	Experimental  bool
}

const defaultCachePruneAge = 30 * 24 * time.Hour

// DetectLayout builds a Layout from an environment lookup function. Passing
// the lookup in keeps the function pure for tests.
func DetectLayout(getenv func(string) string) Layout {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	l := Layout{
		DataDir:       getenv("MISE_DATA_DIR"),
		ConfigDir:     getenv("MISE_CONFIG_DIR"),
		CacheDir:      getenv("MISE_CACHE_DIR"),
		CachePruneAge: defaultCachePruneAge,
		TaskOutput:    getenv("MISE_TASK_OUTPUT"),
		Experimental:  getenv("MISE_EXPERIMENTAL") == "1" || getenv("MISE_EXPERIMENTAL") == "true",
	}
	if l.DataDir == "" {
		l.DataDir = filepath.Join(home, ".local", "share", "mise")
	}
	if l.ConfigDir == "" {
		l.ConfigDir = filepath.Join(home, ".config", "mise")
	}
	if l.CacheDir == "" {
		l.CacheDir = filepath.Join(home, ".cache", "mise")
	}
	if v := getenv("MISE_CACHE_PRUNE_AGE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			l.CachePruneAge = d
		}
	}
	return l
}

// InstallsDir is the root of all tool install prefixes.
func (l Layout) InstallsDir() string {
	return filepath.Join(l.DataDir, "installs")
}

// ShimsDir holds the shim executables.
func (l Layout) ShimsDir() string {
	return filepath.Join(l.DataDir, "shims")
}

// PluginsDir holds backend plugin code and manifests.
func (l Layout) PluginsDir() string {
	return filepath.Join(l.DataDir, "plugins")
}

// UserConfigPath is the user-scope configuration file.
func (l Layout) UserConfigPath() string {
	return filepath.Join(l.ConfigDir, "config.toml")
}

// SystemConfigPath is the system-scope configuration file.
func (l Layout) SystemConfigPath() string {
	return "/etc/mise/config.toml"
}

// InstallPrefix derives the install prefix for a resolved version. The
// mapping is a pure function of the (backend, tool, version) triple.
func (l Layout) InstallPrefix(backend, tool, version string) string {
	return filepath.Join(l.InstallsDir(), pathSafe(backend), pathSafe(tool), pathSafe(version))
}

// pathSafe replaces separators that would escape the installs tree.
func pathSafe(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '/', '\\', ':':
			out[i] = '-'
		default:
			out[i] = s[i]
		}
	}
	return string(out)
}
