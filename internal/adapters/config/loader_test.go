package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuckyWindsck/mise/internal/adapters/config"
	"github.com/LuckyWindsck/mise/internal/core/domain"
	"github.com/LuckyWindsck/mise/internal/core/ports"
)

// fakeBackend implements just enough of ports.Backend for loader tests.
type fakeBackend struct {
	name      string
	filenames []string
}

func (f *fakeBackend) Name() string { return f.name }
func (f *fakeBackend) ListRemoteVersions(context.Context) ([]string, error) {
	return nil, nil
}
func (f *fakeBackend) Install(context.Context, string, string, domain.ToolOptions) error {
	return nil
}
func (f *fakeBackend) Uninstall(context.Context, string) error { return nil }
func (f *fakeBackend) ExecEnv(string) (domain.ExecEnv, error)  { return domain.ExecEnv{}, nil }
func (f *fakeBackend) Checksum(string) (string, bool)          { return "", false }
func (f *fakeBackend) Verify(context.Context, string) error    { return nil }
func (f *fakeBackend) IdiomaticFilenames() []string            { return f.filenames }
func (f *fakeBackend) Dependencies() []string                  { return nil }
func (f *fakeBackend) Aliases() map[string]string              { return nil }

type fakeRegistry struct {
	backends []ports.Backend
}

func (r *fakeRegistry) Get(name string) (ports.Backend, error) {
	for _, b := range r.backends {
		if b.Name() == name {
			return b, nil
		}
	}
	return nil, domain.ErrBackendUnavailable
}
func (r *fakeRegistry) List() []ports.Backend { return r.backends }
func (r *fakeRegistry) FullName(short string) string {
	for _, b := range r.backends {
		if b.Name() == "core:"+short {
			return b.Name()
		}
	}
	return short
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newLoader(t *testing.T, registry ports.BackendRegistry) (*config.Loader, string) {
	t.Helper()
	root := t.TempDir()
	layout := domain.Layout{
		DataDir:   filepath.Join(root, "data"),
		ConfigDir: filepath.Join(root, "config"),
		CacheDir:  filepath.Join(root, "cache"),
	}
	return config.NewLoader(layout, registry, nil), root
}

func TestLoad_InnerLayerOverridesToolList(t *testing.T) {
	loader, root := newLoader(t, &fakeRegistry{})
	project := filepath.Join(root, "repo", "sub")
	write(t, filepath.Join(root, "repo", "mise.toml"), `
[tools]
python = ["3.11", "3.10"]
node = "20"
`)
	write(t, filepath.Join(project, "mise.toml"), `
[tools]
python = "3.12"
`)

	ec, err := loader.Load(project)
	require.NoError(t, err)

	py, ok := ec.Tool("python")
	require.True(t, ok)
	require.Len(t, py.Requested, 1, "inner layer replaces the whole list")
	assert.Equal(t, "3.12", py.Requested[0].Spec)

	node, ok := ec.Tool("node")
	require.True(t, ok)
	assert.Equal(t, "20", node.Requested[0].Spec)
}

func TestLoad_ToolDeclarationOrderPreserved(t *testing.T) {
	loader, root := newLoader(t, &fakeRegistry{})
	project := filepath.Join(root, "p")
	write(t, filepath.Join(project, "mise.toml"), `
[tools]
zig = "0.13.0"
node = "20"
python = "3.12"
`)

	ec, err := loader.Load(project)
	require.NoError(t, err)

	names := make([]string, len(ec.Tools))
	for i, tool := range ec.Tools {
		names[i] = tool.Name
	}
	assert.Equal(t, []string{"zig", "node", "python"}, names)
}

func TestLoad_EnvInnerWins(t *testing.T) {
	loader, root := newLoader(t, &fakeRegistry{})
	project := filepath.Join(root, "repo", "sub")
	write(t, filepath.Join(root, "repo", "mise.toml"), `
[env]
FOO = "outer"
BAR = "outer-only"
`)
	write(t, filepath.Join(project, "mise.toml"), `
[env]
FOO = "inner"
`)

	ec, err := loader.Load(project)
	require.NoError(t, err)

	final := map[string]string{}
	for _, e := range ec.Env {
		if e.Remove {
			delete(final, e.Key)
		} else {
			final[e.Key] = e.Value
		}
	}
	assert.Equal(t, map[string]string{"FOO": "inner", "BAR": "outer-only"}, final)
}

func TestLoad_TasksInnerReplacesOuter(t *testing.T) {
	loader, root := newLoader(t, &fakeRegistry{})
	project := filepath.Join(root, "repo", "sub")
	write(t, filepath.Join(root, "repo", "mise.toml"), `
[tasks.build]
run = "make outer"
[tasks.test]
run = "make test"
`)
	write(t, filepath.Join(project, "mise.toml"), `
[tasks.build]
run = "make inner"
`)

	ec, err := loader.Load(project)
	require.NoError(t, err)
	assert.Equal(t, []string{"make inner"}, ec.Tasks["build"].Run)
	assert.Equal(t, []string{"make test"}, ec.Tasks["test"].Run)
}

func TestLoad_ParseErrorInParentLayerIsNonFatal(t *testing.T) {
	loader, root := newLoader(t, &fakeRegistry{})
	project := filepath.Join(root, "repo", "sub")
	write(t, filepath.Join(root, "repo", "mise.toml"), `not [valid toml`)
	write(t, filepath.Join(project, "mise.toml"), `
[tools]
python = "3.12"
`)

	ec, err := loader.Load(project)
	require.NoError(t, err)
	_, ok := ec.Tool("python")
	assert.True(t, ok)
}

func TestLoad_ParseErrorInProjectLayerAborts(t *testing.T) {
	loader, root := newLoader(t, &fakeRegistry{})
	project := filepath.Join(root, "p")
	write(t, filepath.Join(project, "mise.toml"), `not [valid toml`)

	_, err := loader.Load(project)
	require.Error(t, err)
}

func TestLoad_Deterministic(t *testing.T) {
	loader, root := newLoader(t, &fakeRegistry{})
	project := filepath.Join(root, "p")
	write(t, filepath.Join(project, "mise.toml"), `
[tools]
python = "3.12"
node = "20"

[env]
A = "1"
B = "2"

[tasks.build]
run = "make"
`)

	first, err := loader.Load(project)
	require.NoError(t, err)
	second, err := loader.Load(project)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoad_IdiomaticVersionFile(t *testing.T) {
	registry := &fakeRegistry{backends: []ports.Backend{
		&fakeBackend{name: "core:python", filenames: []string{".python-version"}},
	}}
	loader, root := newLoader(t, registry)
	project := filepath.Join(root, "p")
	write(t, filepath.Join(project, "mise.toml"), `
[settings]
idiomatic_version_file_enable_tools = ["python"]
`)
	write(t, filepath.Join(project, ".python-version"), "3.11.9\n")

	ec, err := loader.Load(project)
	require.NoError(t, err)

	py, ok := ec.Tool("python")
	require.True(t, ok)
	assert.Equal(t, "3.11.9", py.Requested[0].Spec)
	assert.Equal(t, "core:python", py.Backend)
}

func TestLoad_IdiomaticVersionFileDisabledByDefault(t *testing.T) {
	registry := &fakeRegistry{backends: []ports.Backend{
		&fakeBackend{name: "core:python", filenames: []string{".python-version"}},
	}}
	loader, root := newLoader(t, registry)
	project := filepath.Join(root, "p")
	write(t, filepath.Join(project, ".python-version"), "3.11.9\n")

	ec, err := loader.Load(project)
	require.NoError(t, err)
	_, ok := ec.Tool("python")
	assert.False(t, ok)
}

func TestLoad_ToolTableWithOptions(t *testing.T) {
	loader, root := newLoader(t, &fakeRegistry{})
	project := filepath.Join(root, "p")
	write(t, filepath.Join(project, "mise.toml"), `
[tools.python]
version = "3.12"
virtualenv = ".venv"
`)

	ec, err := loader.Load(project)
	require.NoError(t, err)

	py, ok := ec.Tool("python")
	require.True(t, ok)
	require.Len(t, py.Requested, 1)
	assert.Equal(t, "3.12", py.Requested[0].Spec)
	assert.Equal(t, ".venv", py.Requested[0].Options["virtualenv"])
}
