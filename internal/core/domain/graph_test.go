package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuckyWindsck/mise/internal/core/domain"
)

func defs(tasks ...domain.TaskDef) map[string]domain.TaskDef {
	m := make(map[string]domain.TaskDef, len(tasks))
	for _, t := range tasks {
		m[t.Name] = t
	}
	return m
}

func TestBuildTaskGraph_TransitiveDepends(t *testing.T) {
	d := defs(
		domain.TaskDef{Name: "a"},
		domain.TaskDef{Name: "b", Depends: []string{"a"}},
		domain.TaskDef{Name: "c", Depends: []string{"b"}},
		domain.TaskDef{Name: "d"},
	)

	g, err := domain.BuildTaskGraph(d, []string{"c"})
	require.NoError(t, err)
	assert.Equal(t, 3, g.Len())
	_, ok := g.Lookup("d")
	assert.False(t, ok, "d is not in c's closure")
}

func TestBuildTaskGraph_DependsPostRunsAfter(t *testing.T) {
	d := defs(
		domain.TaskDef{Name: "a"},
		domain.TaskDef{Name: "b", Depends: []string{"a"}},
		domain.TaskDef{Name: "c", Depends: []string{"b"}},
		domain.TaskDef{Name: "all", Depends: []string{"a", "b", "c"}, DependsPost: []string{"z"}},
		domain.TaskDef{Name: "z"},
	)

	g, err := domain.BuildTaskGraph(d, []string{"all"})
	require.NoError(t, err)
	require.Equal(t, 5, g.Len())

	z, ok := g.Lookup("z")
	require.True(t, ok)
	all, ok := g.Lookup("all")
	require.True(t, ok)
	assert.Contains(t, g.Preds(z), all, "post-dep z must wait for all")

	order := g.TopoOrder()
	names := make([]string, len(order))
	for i, n := range order {
		names[i] = g.Name(n).String()
	}
	assert.Equal(t, []string{"a", "b", "c", "all", "z"}, names)
}

func TestBuildTaskGraph_MissingTask(t *testing.T) {
	d := defs(domain.TaskDef{Name: "a", Depends: []string{"ghost"}})

	_, err := domain.BuildTaskGraph(d, []string{"a"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTaskNotFound))
}

func TestBuildTaskGraph_Cycle(t *testing.T) {
	d := defs(
		domain.TaskDef{Name: "a", Depends: []string{"c"}},
		domain.TaskDef{Name: "b", Depends: []string{"a"}},
		domain.TaskDef{Name: "c", Depends: []string{"b"}},
	)

	_, err := domain.BuildTaskGraph(d, []string{"a"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTaskCycle))
}

func TestBuildTaskGraph_PostDepCycle(t *testing.T) {
	// a both depends on z and schedules z as a post-dep: z must run both
	// before and after a.
	d := defs(
		domain.TaskDef{Name: "a", Depends: []string{"z"}, DependsPost: []string{"z"}},
		domain.TaskDef{Name: "z"},
	)
	_, err := domain.BuildTaskGraph(d, []string{"a"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTaskCycle))
}

func TestIsLinear_ChainWithRedundantEdges(t *testing.T) {
	// all declares a, b, c even though c covers the rest; the redundant
	// edges reduce away and the chain a->b->c->all->z stays linear.
	d := defs(
		domain.TaskDef{Name: "a"},
		domain.TaskDef{Name: "b", Depends: []string{"a"}},
		domain.TaskDef{Name: "c", Depends: []string{"b"}},
		domain.TaskDef{Name: "all", Depends: []string{"a", "b", "c"}, DependsPost: []string{"z"}},
		domain.TaskDef{Name: "z"},
	)

	g, err := domain.BuildTaskGraph(d, []string{"all"})
	require.NoError(t, err)
	assert.True(t, g.IsLinear())
}

func TestIsLinear_SiblingRootsAreNotLinear(t *testing.T) {
	d := defs(domain.TaskDef{Name: "a"}, domain.TaskDef{Name: "d"})

	g, err := domain.BuildTaskGraph(d, []string{"a", "d"})
	require.NoError(t, err)
	assert.False(t, g.IsLinear(), "independent roots render with prefixes")
}

func TestIsLinear_Diamond(t *testing.T) {
	d := defs(
		domain.TaskDef{Name: "base"},
		domain.TaskDef{Name: "left", Depends: []string{"base"}},
		domain.TaskDef{Name: "right", Depends: []string{"base"}},
		domain.TaskDef{Name: "top", Depends: []string{"left", "right"}},
	)

	g, err := domain.BuildTaskGraph(d, []string{"top"})
	require.NoError(t, err)
	assert.False(t, g.IsLinear())
}
