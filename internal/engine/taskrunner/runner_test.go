package taskrunner_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/LuckyWindsck/mise/internal/adapters/shell"
	"github.com/LuckyWindsck/mise/internal/core/domain"
	"github.com/LuckyWindsck/mise/internal/core/ports"
	"github.com/LuckyWindsck/mise/internal/core/ports/mocks"
	"github.com/LuckyWindsck/mise/internal/engine/taskrunner"
)

// specTasks is the scenario task set: a linear chain under `all` plus an
// unrelated `d` and the post-dep `z`.
func specTasks() map[string]domain.TaskDef {
	return map[string]domain.TaskDef{
		"a":   {Name: "a", Run: []string{"echo running a"}},
		"b":   {Name: "b", Run: []string{"echo running b"}, Depends: []string{"a"}},
		"c":   {Name: "c", Run: []string{"echo running c"}, Depends: []string{"b"}},
		"all": {Name: "all", Run: []string{"echo running all"}, Depends: []string{"a", "b", "c"}, DependsPost: []string{"z"}},
		"d":   {Name: "d", Run: []string{"echo running d"}},
		"z":   {Name: "z", Run: []string{"echo running z"}},
	}
}

func runAll(t *testing.T, mode taskrunner.OutputMode, requested ...string) string {
	t.Helper()
	graph, err := domain.BuildTaskGraph(specTasks(), requested)
	require.NoError(t, err)

	if mode == taskrunner.OutputAuto {
		mode = taskrunner.SelectMode("", "", graph)
	}

	var out bytes.Buffer
	r := taskrunner.NewRunner(shell.NewExecutor(), nil)
	err = r.Run(context.Background(), graph, taskrunner.RunOptions{
		Jobs:   4,
		Mode:   mode,
		Env:    os.Environ(),
		Stdout: &out,
		Stderr: &out,
	})
	require.NoError(t, err)
	return out.String()
}

func TestRun_SilentSwallowsOutput(t *testing.T) {
	assert.Empty(t, runAll(t, taskrunner.OutputSilent, "all"))
}

func TestRun_QuietStreamsInDependencyOrder(t *testing.T) {
	out := runAll(t, taskrunner.OutputQuiet, "all")
	assert.Equal(t,
		"running a\nrunning b\nrunning c\nrunning all\nrunning z\n",
		out)
}

func TestRun_PrefixPrependsTaskNames(t *testing.T) {
	out := runAll(t, taskrunner.OutputPrefix, "all")
	assert.Equal(t,
		"[a] running a\n[b] running b\n[c] running c\n[all] running all\n[z] running z\n",
		out)
}

func TestRun_AutoPicksInterleaveForLinearGraph(t *testing.T) {
	out := runAll(t, taskrunner.OutputAuto, "all")
	assert.Equal(t,
		"running a\nrunning b\nrunning c\nrunning all\nrunning z\n",
		out)
}

func TestRun_SeparatorSiblingsUsePrefix(t *testing.T) {
	groups := taskrunner.SplitRequests([]string{"a", ":::", "d"})
	require.Equal(t, [][]string{{"a"}, {"d"}}, groups)

	var requested []string
	for _, g := range groups {
		requested = append(requested, g...)
	}
	graph, err := domain.BuildTaskGraph(specTasks(), requested)
	require.NoError(t, err)
	assert.Equal(t, taskrunner.OutputPrefix, taskrunner.SelectMode("", "", graph))

	out := runAll(t, taskrunner.OutputAuto, "a", "d")
	assert.Contains(t, out, "[a] running a\n")
	assert.Contains(t, out, "[d] running d\n")
}

func TestSelectMode_Precedence(t *testing.T) {
	graph, err := domain.BuildTaskGraph(specTasks(), []string{"all"})
	require.NoError(t, err)

	assert.Equal(t, taskrunner.OutputSilent, taskrunner.SelectMode("silent", "prefix", graph))
	assert.Equal(t, taskrunner.OutputPrefix, taskrunner.SelectMode("", "prefix", graph))
	assert.Equal(t, taskrunner.OutputInterleave, taskrunner.SelectMode("", "", graph))
	assert.Equal(t, taskrunner.OutputInterleave, taskrunner.SelectMode("bogus", "", graph))
}

func TestRun_FailureStopsNewTasks(t *testing.T) {
	defs := map[string]domain.TaskDef{
		"a": {Name: "a", Run: []string{"echo ran a"}},
		"b": {Name: "b", Run: []string{"exit 7"}, Depends: []string{"a"}},
		"c": {Name: "c", Run: []string{"echo ran c"}, Depends: []string{"b"}},
	}
	graph, err := domain.BuildTaskGraph(defs, []string{"c"})
	require.NoError(t, err)

	var out bytes.Buffer
	r := taskrunner.NewRunner(shell.NewExecutor(), nil)
	err = r.Run(context.Background(), graph, taskrunner.RunOptions{
		Jobs: 2, Mode: taskrunner.OutputQuiet, Env: os.Environ(),
		Stdout: &out, Stderr: &out,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTaskFailed))
	assert.Contains(t, out.String(), "ran a")
	assert.NotContains(t, out.String(), "ran c")
}

func TestRun_TaskEnvOverridesBase(t *testing.T) {
	defs := map[string]domain.TaskDef{
		"show": {Name: "show", Run: []string{"echo $GREETING"}, Env: map[string]string{"GREETING": "from-task"}},
	}
	graph, err := domain.BuildTaskGraph(defs, []string{"show"})
	require.NoError(t, err)

	var out bytes.Buffer
	r := taskrunner.NewRunner(shell.NewExecutor(), nil)
	err = r.Run(context.Background(), graph, taskrunner.RunOptions{
		Jobs: 1, Mode: taskrunner.OutputQuiet,
		Env:    append(os.Environ(), "GREETING=from-base"),
		Stdout: &out, Stderr: &out,
	})
	require.NoError(t, err)
	assert.Equal(t, "from-task\n", out.String())
}

func TestRun_PredecessorsCompleteBeforeSuccessors(t *testing.T) {
	ctrl := gomock.NewController(t)
	exec := mocks.NewMockExecutor(ctrl)

	var mu sync.Mutex
	var order []string
	exec.EXPECT().Execute(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, spec ports.ExecSpec) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, spec.Argv[2])
			return nil
		}).AnyTimes()

	graph, err := domain.BuildTaskGraph(specTasks(), []string{"all"})
	require.NoError(t, err)

	r := taskrunner.NewRunner(exec, nil)
	require.NoError(t, r.Run(context.Background(), graph, taskrunner.RunOptions{
		Jobs: 4, Mode: taskrunner.OutputSilent,
	}))
	assert.Equal(t, []string{
		"echo running a", "echo running b", "echo running c",
		"echo running all", "echo running z",
	}, order)
}

func TestRun_MissingTask(t *testing.T) {
	_, err := domain.BuildTaskGraph(specTasks(), []string{"nope"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTaskNotFound))
}

func TestRenderDeps(t *testing.T) {
	out, err := taskrunner.RenderDeps(specTasks(), []string{"all"})
	require.NoError(t, err)
	assert.Equal(t, strings.TrimLeft(`
all
├─ a
├─ b
│  └─ a
└─ c
   └─ b
      └─ a
`, "\n"), out)
}

func TestRenderDeps_PostDepIncludesDeclaringTask(t *testing.T) {
	out, err := taskrunner.RenderDeps(specTasks(), []string{"z"})
	require.NoError(t, err)
	assert.Contains(t, out, "└─ all", "z waits on all")
	assert.Contains(t, out, "a", "all's subtree appears under z")
}

func TestListTasks_SortedAndVisible(t *testing.T) {
	defs := specTasks()
	hidden := defs["d"]
	hidden.Hide = true
	defs["d"] = hidden

	names := []string{}
	for _, def := range taskrunner.ListTasks(defs) {
		names = append(names, def.Name)
	}
	assert.Equal(t, []string{"a", "all", "b", "c", "z"}, names)
}
