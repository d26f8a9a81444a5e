package app_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	backendadapter "github.com/LuckyWindsck/mise/internal/adapters/backend"
	cacheadapter "github.com/LuckyWindsck/mise/internal/adapters/cache"
	configadapter "github.com/LuckyWindsck/mise/internal/adapters/config"
	"github.com/LuckyWindsck/mise/internal/adapters/flock"
	"github.com/LuckyWindsck/mise/internal/adapters/shell"
	"github.com/LuckyWindsck/mise/internal/app"
	"github.com/LuckyWindsck/mise/internal/core/domain"
	"github.com/LuckyWindsck/mise/internal/engine/envbuilder"
	"github.com/LuckyWindsck/mise/internal/engine/resolver"
	"github.com/LuckyWindsck/mise/internal/engine/shims"
	"github.com/LuckyWindsck/mise/internal/engine/taskrunner"
	"github.com/LuckyWindsck/mise/internal/engine/toolset"
)

const zigManifest = `
name: core:zig
versions: ["0.12.0", "0.13.0"]
bins: ["bin"]
`

// newApp wires a full application with a zig plugin whose payloads exist
// for both catalog versions, then chdirs into a project dir.
func newApp(t *testing.T) (*app.App, domain.Layout, string) {
	t.Helper()
	root := t.TempDir()
	layout := domain.Layout{
		DataDir:   filepath.Join(root, "data"),
		ConfigDir: filepath.Join(root, "config"),
		CacheDir:  filepath.Join(root, "cache"),
	}

	pluginDir := filepath.Join(layout.PluginsDir(), "zig")
	require.NoError(t, os.MkdirAll(pluginDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "plugin.yaml"), []byte(zigManifest), 0o644))
	for _, v := range []string{"0.12.0", "0.13.0"} {
		bin := filepath.Join(pluginDir, "payloads", v, "bin")
		require.NoError(t, os.MkdirAll(bin, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(bin, "zig"), []byte("#!/bin/sh\necho zig "+v+"\n"), 0o755))
	}

	registry, err := backendadapter.LoadRegistry(layout, nil)
	require.NoError(t, err)
	store := cacheadapter.NewStore(layout.CacheDir, clockwork.NewRealClock())
	loader := configadapter.NewLoader(layout, registry, nil)
	res := resolver.New(registry, store, nil)
	locker := &flock.Locker{Retries: 1, Delay: time.Millisecond}
	ts := toolset.New(layout, registry, res, locker, nil, clockwork.NewRealClock())
	env := envbuilder.New(layout, store, nil)
	sh := shims.New(layout, locker, nil)
	runner := taskrunner.NewRunner(shell.NewExecutor(), nil)

	a := app.New(layout, nil, loader, registry, store, ts, env, sh, runner)

	project := filepath.Join(root, "project")
	require.NoError(t, os.MkdirAll(project, 0o755))
	t.Chdir(project)
	return a, layout, project
}

func writeProject(t *testing.T, project, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(project, "mise.toml"), []byte(content), 0o644))
}

func TestInstall_EndToEndWithShims(t *testing.T) {
	a, layout, project := newApp(t)
	writeProject(t, project, `
[tools]
zig = "0.13"
`)

	require.NoError(t, a.Install(context.Background(), nil, false))

	prefix := layout.InstallPrefix("core:zig", "zig", "0.13.0")
	_, err := os.Stat(filepath.Join(prefix, "bin", "zig"))
	require.NoError(t, err, "prefix version resolved to 0.13.0 and installed")

	shim := filepath.Join(layout.ShimsDir(), "zig")
	content, err := os.ReadFile(shim)
	require.NoError(t, err)
	assert.Contains(t, string(content), "mise x --shim zig")
}

func TestUse_PinsAndInstalls(t *testing.T) {
	a, layout, project := newApp(t)

	require.NoError(t, a.Use(context.Background(), []string{"zig@0.12.0"}, false))

	data, err := os.ReadFile(filepath.Join(project, "mise.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "zig")
	assert.Contains(t, string(data), "0.12.0")

	_, err = os.Stat(layout.InstallPrefix("core:zig", "zig", "0.12.0"))
	require.NoError(t, err)
}

func TestBinPaths(t *testing.T) {
	a, layout, project := newApp(t)
	writeProject(t, project, `
[tools]
zig = "0.13.0"
`)
	require.NoError(t, a.Install(context.Background(), nil, false))

	var out bytes.Buffer
	require.NoError(t, a.BinPaths(context.Background(), &out))
	assert.Equal(t,
		filepath.Join(layout.InstallPrefix("core:zig", "zig", "0.13.0"), "bin")+"\n",
		out.String())
}

func TestHookEnv_EmitsExportsThenStabilizes(t *testing.T) {
	a, _, project := newApp(t)
	writeProject(t, project, `
[tools]
zig = "0.13.0"

[env]
PROJECT_NAME = "demo"
`)
	require.NoError(t, a.Install(context.Background(), nil, false))

	var first bytes.Buffer
	require.NoError(t, a.HookEnv(context.Background(), &first))
	assert.Contains(t, first.String(), "export PATH=")
	assert.Contains(t, first.String(), "export PROJECT_NAME='demo'")
	assert.Contains(t, first.String(), "export __MISE_DIFF=")

	// Replay the emitted env into the "shell" and hook again: no delta.
	env := map[string]string{"PATH": os.Getenv("PATH")}
	applyExports(t, env, first.String())
	for k, v := range env {
		t.Setenv(k, v)
	}

	var second bytes.Buffer
	require.NoError(t, a.HookEnv(context.Background(), &second))
	assert.Empty(t, second.String(), "unchanged config and tools produce no delta")
}

// applyExports parses `export K='v'` lines into the map.
func applyExports(t *testing.T, env map[string]string, script string) {
	t.Helper()
	for _, line := range strings.Split(script, "\n") {
		if !strings.HasPrefix(line, "export ") {
			continue
		}
		kv := strings.TrimPrefix(line, "export ")
		k, v, ok := strings.Cut(kv, "=")
		require.True(t, ok)
		v = strings.TrimSuffix(strings.TrimPrefix(v, "'"), "'")
		env[k] = v
	}
}

func TestHookEnv_SoftFailureKeepsEnvironment(t *testing.T) {
	a, _, project := newApp(t)
	// An unparsable project config aborts `env` but hook-env degrades.
	writeProject(t, project, "not [valid toml")

	var out bytes.Buffer
	require.NoError(t, a.HookEnv(context.Background(), &out))
	assert.Empty(t, out.String())
}

func TestExec_RunsShimTarget(t *testing.T) {
	a, _, project := newApp(t)
	writeProject(t, project, `
[tools]
zig = "0.13.0"
`)
	require.NoError(t, a.Install(context.Background(), nil, false))

	var out bytes.Buffer
	err := a.Exec(context.Background(), "zig", nil, &out, &out, shell.NewExecutor())
	require.NoError(t, err)
	assert.Equal(t, "zig 0.13.0\n", out.String())
}

func TestLs_MarksMissingVersions(t *testing.T) {
	a, _, project := newApp(t)
	writeProject(t, project, `
[tools]
zig = "0.13.0"
`)

	var out bytes.Buffer
	require.NoError(t, a.Ls(context.Background(), &out, false))
	assert.Contains(t, out.String(), "? zig 0.13.0")

	require.NoError(t, a.Install(context.Background(), nil, false))
	out.Reset()
	require.NoError(t, a.Ls(context.Background(), &out, false))
	assert.Contains(t, out.String(), "  zig 0.13.0")
}

func TestUninstall_RemovesPrefixAndShims(t *testing.T) {
	a, layout, project := newApp(t)
	writeProject(t, project, `
[tools]
zig = "0.13.0"
`)
	require.NoError(t, a.Install(context.Background(), nil, false))

	require.NoError(t, a.Uninstall(context.Background(), "zig@0.13.0"))
	_, err := os.Stat(layout.InstallPrefix("core:zig", "zig", "0.13.0"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(layout.ShimsDir(), "zig"))
	assert.True(t, os.IsNotExist(err), "shim pruned with its tool")
}
