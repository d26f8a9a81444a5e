// Package app implements the application layer: one immutable context per
// invocation, built at startup and passed explicitly to every operation.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"go.trai.ch/zerr"

	"github.com/LuckyWindsck/mise/internal/adapters/settings"
	"github.com/LuckyWindsck/mise/internal/core/domain"
	"github.com/LuckyWindsck/mise/internal/core/ports"
	"github.com/LuckyWindsck/mise/internal/engine/envbuilder"
	"github.com/LuckyWindsck/mise/internal/engine/shims"
	"github.com/LuckyWindsck/mise/internal/engine/taskrunner"
	"github.com/LuckyWindsck/mise/internal/engine/toolset"
)

// App carries the invocation context: layout, effective-config loader, and
// the engines. It has no mutable state of its own.
type App struct {
	Layout   domain.Layout
	Logger   ports.Logger
	Loader   ports.ConfigLoader
	Registry ports.BackendRegistry
	Cache    ports.CacheStore
	Toolset  *toolset.Engine
	Env      *envbuilder.Builder
	Shims    *shims.Manager
	Runner   *taskrunner.Runner
}

// New creates an App.
func New(
	layout domain.Layout,
	logger ports.Logger,
	loader ports.ConfigLoader,
	registry ports.BackendRegistry,
	cacheStore ports.CacheStore,
	ts *toolset.Engine,
	env *envbuilder.Builder,
	sh *shims.Manager,
	runner *taskrunner.Runner,
) *App {
	return &App{
		Layout:   layout,
		Logger:   logger,
		Loader:   loader,
		Registry: registry,
		Cache:    cacheStore,
		Toolset:  ts,
		Env:      env,
		Shims:    sh,
		Runner:   runner,
	}
}

func (a *App) load() (*domain.EffectiveConfig, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, zerr.Wrap(err, "failed to determine working directory")
	}
	return a.Loader.Load(cwd)
}

// resolveTools loads the config and resolves every requested version.
func (a *App) resolveTools(ctx context.Context) (*domain.EffectiveConfig, []domain.Tool, error) {
	ec, err := a.load()
	if err != nil {
		return nil, nil, err
	}
	tools, err := a.Toolset.ResolveAll(ctx, ec)
	if err != nil {
		return nil, nil, err
	}
	return ec, tools, nil
}

// Install installs missing versions. With args, only the named tools
// install; each arg is "tool" or "tool@version".
func (a *App) Install(ctx context.Context, args []string, force bool) error {
	ec, tools, err := a.resolveTools(ctx)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		tools, err = a.filterOrResolveArgs(ctx, ec, tools, args)
		if err != nil {
			return err
		}
	}
	installed, err := a.Toolset.InstallMissing(ctx, tools, toolset.InstallOptions{
		Jobs:    ec.Settings.Jobs,
		Force:   force,
		Timeout: ec.Settings.InstallTimeout,
	})
	if err != nil {
		return err
	}
	if len(installed) > 0 {
		return a.reconcileShims(ctx)
	}
	return nil
}

// filterOrResolveArgs narrows the tool list to the named tools, resolving
// explicit "tool@version" requests that are not in the config.
func (a *App) filterOrResolveArgs(ctx context.Context, ec *domain.EffectiveConfig, tools []domain.Tool, args []string) ([]domain.Tool, error) {
	var out []domain.Tool
	for _, arg := range args {
		name, spec, _ := strings.Cut(arg, "@")
		var found *domain.Tool
		for i := range tools {
			if tools[i].Name == name {
				found = &tools[i]
				break
			}
		}
		if found != nil && spec == "" {
			out = append(out, *found)
			continue
		}
		if spec == "" {
			spec = "latest"
		}
		req := domain.VersionRequest{
			Backend: a.Registry.FullName(name),
			Tool:    name,
			Spec:    spec,
		}
		rv, err := a.Toolset.Resolve(ctx, req, ec)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Tool{
			Backend:   req.Backend,
			Name:      name,
			Requested: []domain.VersionRequest{req},
			Resolved:  []domain.ResolvedVersion{rv},
		})
	}
	return out, nil
}

// Use pins tool versions in the innermost config file (or the user config
// with global) and installs them.
func (a *App) Use(ctx context.Context, args []string, global bool) error {
	path, err := a.writableConfigPath(global)
	if err != nil {
		return err
	}
	for _, arg := range args {
		name, spec, ok := strings.Cut(arg, "@")
		if !ok || name == "" || spec == "" {
			return zerr.With(zerr.New("expected tool@version"), "argument", arg)
		}
		if err := pinTool(path, name, spec); err != nil {
			return err
		}
	}
	return a.Install(ctx, nil, false)
}

// writableConfigPath picks the target for config mutations: the user
// config with global, otherwise the project config in the working
// directory (created on first write).
func (a *App) writableConfigPath(global bool) (string, error) {
	if global {
		return a.Layout.UserConfigPath(), nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", zerr.Wrap(err, "failed to determine working directory")
	}
	for _, name := range []string{"mise.local.toml", ".mise.toml", "mise.toml"} {
		candidate := cwd + string(os.PathSeparator) + name
		if info, statErr := os.Stat(candidate); statErr == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return cwd + string(os.PathSeparator) + "mise.toml", nil
}

// Uninstall removes one installed version ("tool@version").
func (a *App) Uninstall(ctx context.Context, arg string) error {
	name, version, ok := strings.Cut(arg, "@")
	if !ok {
		return zerr.With(zerr.New("expected tool@version"), "argument", arg)
	}
	rv := domain.ResolvedVersion{
		Backend: a.Registry.FullName(name),
		Tool:    name,
		Version: version,
		Request: domain.VersionRequest{Backend: a.Registry.FullName(name), Tool: name, Spec: version},
	}
	if err := a.Toolset.Uninstall(ctx, rv); err != nil {
		return err
	}
	return a.reconcileShims(ctx)
}

// Ls prints requested and installed versions. With outdated, only tools
// trailing their catalog are listed.
func (a *App) Ls(ctx context.Context, w io.Writer, outdated bool) error {
	ec, tools, err := a.resolveTools(ctx)
	if err != nil {
		return err
	}
	if outdated {
		for _, oi := range a.Toolset.Outdated(ctx, tools, ec) {
			fmt.Fprintf(w, "%s\t%s\t-> %s\n", oi.Tool, oi.Current, oi.Latest)
		}
		return nil
	}

	requested := map[string]bool{}
	for _, t := range tools {
		for _, rv := range t.Resolved {
			mark := " "
			if !a.Toolset.IsInstalled(rv) {
				mark = "?"
			}
			fmt.Fprintf(w, "%s %s %s\n", mark, t.Name, rv.Version)
			requested[t.Name+"@"+rv.Version] = true
		}
	}
	for _, rv := range a.Toolset.ListInstalled() {
		if !requested[rv.Tool+"@"+rv.Version] {
			fmt.Fprintf(w, "  %s %s (not requested)\n", rv.Tool, rv.Version)
		}
	}
	return nil
}

// BinPaths prints the active bin directories in PATH order.
func (a *App) BinPaths(ctx context.Context, w io.Writer) error {
	ec, tools, err := a.resolveTools(ctx)
	if err != nil {
		return err
	}
	c := a.Env.BuildContribution(ec, tools)
	for _, p := range c.Paths {
		fmt.Fprintln(w, p)
	}
	return nil
}

// EnvExports prints the activation environment as shell export lines, or
// as JSON.
func (a *App) EnvExports(ctx context.Context, w io.Writer, asJSON bool) error {
	res, err := a.buildEnvResult(ctx, environMap())
	if err != nil {
		return err
	}
	if asJSON {
		vars := map[string]string{"PATH": res.Path}
		for k, v := range res.Contribution.Env {
			vars[k] = v
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(vars)
	}
	emitOps(w, res.Ops)
	return nil
}

// HookEnv emits the per-prompt shell delta. Soft failures never abort: the
// warning goes to the log and nothing is emitted, leaving the previous
// environment untouched.
func (a *App) HookEnv(ctx context.Context, w io.Writer) error {
	res, err := a.buildEnvResult(ctx, environMap())
	if err != nil {
		if a.Logger != nil {
			a.Logger.Warn("hook-env degraded", "error", err)
		}
		return nil
	}
	emitOps(w, res.Ops)
	return nil
}

// buildEnvResult computes the activation delta, short-circuiting through
// the env cache: a fingerprint hit skips tool resolution entirely, which
// keeps hook-env fast on the per-prompt path.
func (a *App) buildEnvResult(ctx context.Context, baseEnv map[string]string) (*envbuilder.Result, error) {
	ec, err := a.load()
	if err != nil {
		return nil, err
	}

	fastFp := a.Env.Fingerprint(ec, nil)
	if c, ok := a.Env.Lookup(fastFp); ok {
		return a.Env.Delta(c, baseEnv)
	}

	tools, err := a.Toolset.ResolveAll(ctx, ec)
	if err != nil {
		return nil, err
	}
	c := a.Env.BuildContribution(ec, tools)
	if err := a.Env.Store(fastFp, c); err != nil && a.Logger != nil {
		a.Logger.Warn("failed to cache env", "error", err)
	}
	return a.Env.Delta(c, baseEnv)
}

func emitOps(w io.Writer, ops []domain.EnvOp) {
	for _, op := range ops {
		if op.Unset {
			fmt.Fprintf(w, "unset %s\n", op.Key)
		} else {
			fmt.Fprintf(w, "export %s=%s\n", op.Key, shellQuote(op.Value))
		}
	}
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Exec runs a command with the activation environment applied. shimName is
// set when dispatched through a shim; the target binary then resolves via
// the active tools before PATH.
func (a *App) Exec(ctx context.Context, shimName string, argv []string, stdout, stderr io.Writer, executor ports.Executor) error {
	ec, tools, err := a.resolveTools(ctx)
	if err != nil {
		return err
	}

	base := environMap()
	res, err := a.Env.Delta(a.Env.BuildContribution(ec, tools), base)
	if err != nil {
		return err
	}
	domain.ApplyEnvOps(base, res.Ops)

	if shimName != "" {
		if _, bin, ok := a.Shims.Which(shimName, tools); ok {
			if len(argv) == 0 {
				argv = []string{bin}
			} else {
				argv = append([]string{bin}, argv...)
			}
		} else if len(argv) == 0 {
			argv = []string{shimName}
		}
	}
	if len(argv) == 0 {
		return zerr.New("no command given")
	}

	return executor.Execute(ctx, ports.ExecSpec{
		Argv:   argv,
		Env:    flattenEnviron(base),
		Stdout: stdout,
		Stderr: stderr,
	})
}

// RunTasks executes the requested tasks. Separator groups become sibling
// roots in one graph.
func (a *App) RunTasks(ctx context.Context, args []string, jobs int, modeFlag string, stdout, stderr io.Writer) error {
	ec, tools, err := a.resolveTools(ctx)
	if err != nil {
		return err
	}

	var requested []string
	for _, group := range taskrunner.SplitRequests(args) {
		requested = append(requested, group...)
	}
	if len(requested) == 0 {
		return zerr.With(domain.ErrTaskNotFound, "reason", "no tasks requested")
	}

	graph, err := domain.BuildTaskGraph(ec.Tasks, requested)
	if err != nil {
		return err
	}

	mode := taskrunner.SelectMode(modeFlag, a.Layout.TaskOutput, graph)

	// Tasks run inside the activation environment.
	base := environMap()
	res, err := a.Env.Delta(a.Env.BuildContribution(ec, tools), base)
	if err != nil {
		return err
	}
	domain.ApplyEnvOps(base, res.Ops)

	if jobs < 1 {
		jobs = ec.Settings.Jobs
	}
	return a.Runner.Run(ctx, graph, taskrunner.RunOptions{
		Jobs:   jobs,
		Mode:   mode,
		Env:    flattenEnviron(base),
		Stdout: stdout,
		Stderr: stderr,
	})
}

// TaskLs prints the visible tasks.
func (a *App) TaskLs(w io.Writer) error {
	ec, err := a.load()
	if err != nil {
		return err
	}
	for _, def := range taskrunner.ListTasks(ec.Tasks) {
		if def.Description != "" {
			fmt.Fprintf(w, "%s\t%s\n", def.Name, def.Description)
		} else {
			fmt.Fprintln(w, def.Name)
		}
	}
	return nil
}

// TaskDeps prints the dependency tree for the requested tasks.
func (a *App) TaskDeps(w io.Writer, args []string) error {
	ec, err := a.load()
	if err != nil {
		return err
	}
	out, err := taskrunner.RenderDeps(ec.Tasks, args)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// SettingsStore opens the settings store for the chosen scope.
func (a *App) SettingsStore(global bool) (*settings.Store, error) {
	path, err := a.writableConfigPath(global)
	if err != nil {
		return nil, err
	}
	return settings.NewStore(path), nil
}

// CacheClear wipes the cache tree.
func (a *App) CacheClear() error { return a.Cache.Clear() }

// CachePrune removes entries older than the configured prune age.
func (a *App) CachePrune() error {
	ec, err := a.load()
	if err != nil {
		return err
	}
	age := ec.Settings.CachePruneAge
	if a.Layout.CachePruneAge > 0 {
		age = a.Layout.CachePruneAge
	}
	return a.Cache.Prune(age)
}

// reconcileShims refreshes the shims dir after install state changed and
// re-primes the env cache so the next hook-env sees the new prefixes.
func (a *App) reconcileShims(ctx context.Context) error {
	ec, tools, err := a.resolveTools(ctx)
	if err != nil {
		return err
	}
	c := a.Env.BuildContribution(ec, tools)
	if err := a.Env.Store(a.Env.Fingerprint(ec, nil), c); err != nil && a.Logger != nil {
		a.Logger.Warn("failed to refresh env cache", "error", err)
	}
	return a.Shims.Reconcile(tools, ec.Settings.ShimExclusions)
}

func environMap() map[string]string {
	env := map[string]string{}
	for _, entry := range os.Environ() {
		if k, v, ok := strings.Cut(entry, "="); ok {
			env[k] = v
		}
	}
	return env
}

func flattenEnviron(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
