package domain

import (
	"sort"
	"strings"
	"unique"

	"go.trai.ch/zerr"
)

// TaskName is an interned task name. The arena stores and compares these
// as single handles, so edge lists, status maps, and cycle paths never
// re-hash the underlying string.
type TaskName struct {
	h unique.Handle[string]
}

func internName(s string) TaskName {
	return TaskName{h: unique.Make(s)}
}

// String returns the task name. TaskName values are only created by the
// graph, so the handle is never zero.
func (n TaskName) String() string { return n.h.Value() }

// TaskGraph is the resolved task dependency DAG. Nodes live in an arena
// indexed by small integers; edges are index lists. Pre-dependencies and
// reversed post-dependencies share the same edge set, so a single
// topological order covers both.
type TaskGraph struct {
	tasks []TaskDef
	names []TaskName
	index map[TaskName]int

	preds [][]int
	succs [][]int
}

// BuildTaskGraph constructs the DAG for the requested tasks, transitively
// including depends and depends_post targets. A depends_post target runs
// after the task that declares it. Returns ErrTaskNotFound for unknown
// names and ErrTaskCycle (with the cycle path) for cyclic graphs.
func BuildTaskGraph(defs map[string]TaskDef, requested []string) (*TaskGraph, error) {
	g := &TaskGraph{index: map[TaskName]int{}}

	var include func(name string) (int, error)
	include = func(name string) (int, error) {
		key := internName(name)
		if i, ok := g.index[key]; ok {
			return i, nil
		}
		def, ok := defs[name]
		if !ok {
			return 0, zerr.With(ErrTaskNotFound, "task", name)
		}
		i := len(g.tasks)
		g.index[key] = i
		g.tasks = append(g.tasks, def)
		g.names = append(g.names, key)
		g.preds = append(g.preds, nil)
		g.succs = append(g.succs, nil)

		for _, dep := range def.Depends {
			d, err := include(dep)
			if err != nil {
				return 0, err
			}
			g.addEdge(d, i)
		}
		for _, post := range def.DependsPost {
			p, err := include(post)
			if err != nil {
				return 0, err
			}
			g.addEdge(i, p)
		}
		return i, nil
	}

	for _, name := range requested {
		if _, err := include(name); err != nil {
			return nil, err
		}
	}
	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// addEdge records that `from` completes before `to` starts.
func (g *TaskGraph) addEdge(from, to int) {
	if from == to {
		return
	}
	for _, s := range g.succs[from] {
		if s == to {
			return
		}
	}
	g.succs[from] = append(g.succs[from], to)
	g.preds[to] = append(g.preds[to], from)
}

// validate runs a DFS cycle check over the edge set.
func (g *TaskGraph) validate() error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make([]int, len(g.tasks))
	var path []int

	var visit func(u int) error
	visit = func(u int) error {
		state[u] = visiting
		path = append(path, u)
		for _, v := range g.succs[u] {
			if state[v] == visiting {
				return g.cycleError(path, v)
			}
			if state[v] == unvisited {
				if err := visit(v); err != nil {
					return err
				}
			}
		}
		state[u] = done
		path = path[:len(path)-1]
		return nil
	}

	for u := range g.tasks {
		if state[u] == unvisited {
			if err := visit(u); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *TaskGraph) cycleError(path []int, repeat int) error {
	start := 0
	for i, n := range path {
		if n == repeat {
			start = i
			break
		}
	}
	parts := make([]string, 0, len(path)-start+1)
	for _, n := range path[start:] {
		parts = append(parts, g.names[n].String())
	}
	parts = append(parts, g.names[repeat].String())
	return zerr.With(ErrTaskCycle, "cycle", strings.Join(parts, " -> "))
}

// Len returns the node count.
func (g *TaskGraph) Len() int { return len(g.tasks) }

// Task returns the definition at index i.
func (g *TaskGraph) Task(i int) TaskDef { return g.tasks[i] }

// Name returns the interned name at index i.
func (g *TaskGraph) Name(i int) TaskName { return g.names[i] }

// Lookup returns the index for a task name.
func (g *TaskGraph) Lookup(name string) (int, bool) {
	i, ok := g.index[internName(name)]
	return i, ok
}

// Preds returns the indices that must complete before i starts.
func (g *TaskGraph) Preds(i int) []int { return g.preds[i] }

// Succs returns the indices unblocked by i completing.
func (g *TaskGraph) Succs(i int) []int { return g.succs[i] }

// TopoOrder returns a deterministic topological order: among ready nodes,
// lower insertion index (requested/discovery order) first.
func (g *TaskGraph) TopoOrder() []int {
	inDegree := make([]int, len(g.tasks))
	for i := range g.tasks {
		inDegree[i] = len(g.preds[i])
	}
	var ready []int
	for i := range g.tasks {
		if inDegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	sort.Ints(ready)

	order := make([]int, 0, len(g.tasks))
	for len(ready) > 0 {
		u := ready[0]
		ready = ready[1:]
		order = append(order, u)
		for _, v := range g.succs[u] {
			inDegree[v]--
			if inDegree[v] == 0 {
				ready = insertSorted(ready, v)
			}
		}
	}
	return order
}

func insertSorted(s []int, v int) []int {
	i := sort.SearchInts(s, v)
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// IsLinear reports whether the graph reduces to a single chain: after
// transitive reduction every node has at most one predecessor and one
// successor, and at most one node has no predecessor. Redundant edges
// (implied by a longer path) do not break linearity.
func (g *TaskGraph) IsLinear() bool {
	n := len(g.tasks)
	if n == 0 {
		return true
	}

	// reach[u][v]: v reachable from u via >=1 edge.
	reach := make([]map[int]bool, n)
	order := g.TopoOrder()
	for i := len(order) - 1; i >= 0; i-- {
		u := order[i]
		reach[u] = map[int]bool{}
		for _, v := range g.succs[u] {
			reach[u][v] = true
			for w := range reach[v] {
				reach[u][w] = true
			}
		}
	}

	roots := 0
	for u := 0; u < n; u++ {
		succs := g.reducedOut(u, reach)
		if len(succs) > 1 {
			return false
		}
		preds := 0
		for p := 0; p < n; p++ {
			if p == u {
				continue
			}
			for _, s := range g.reducedOut(p, reach) {
				if s == u {
					preds++
				}
			}
		}
		if preds > 1 {
			return false
		}
		if len(g.preds[u]) == 0 {
			roots++
		}
	}
	return roots <= 1
}

// reducedOut returns u's successors that survive transitive reduction: an
// edge u->v is redundant when another successor of u already reaches v.
func (g *TaskGraph) reducedOut(u int, reach []map[int]bool) []int {
	var out []int
	for _, v := range g.succs[u] {
		redundant := false
		for _, w := range g.succs[u] {
			if w != v && reach[w][v] {
				redundant = true
				break
			}
		}
		if !redundant {
			out = append(out, v)
		}
	}
	return out
}
