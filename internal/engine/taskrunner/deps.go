package taskrunner

import (
	"slices"
	"sort"
	"strings"

	"github.com/LuckyWindsck/mise/internal/core/domain"
)

// RenderDeps renders the dependency tree for the requested tasks, or for
// every non-hidden task when none are requested. Each root lists the tasks
// that must complete before it, transitively; post-dependency edges appear
// the same way, so a post-dep's tree includes the task that declared it.
func RenderDeps(defs map[string]domain.TaskDef, requested []string) (string, error) {
	if len(requested) == 0 {
		for name, def := range defs {
			if !def.Hide {
				requested = append(requested, name)
			}
		}
		sort.Strings(requested)
	}

	// A post-dep's predecessor is the task declaring it, which the closure
	// of the requested tasks does not reach; include the declarers.
	roots := append([]string(nil), requested...)
	for name, def := range defs {
		if slices.Contains(roots, name) {
			continue
		}
		for _, post := range def.DependsPost {
			if slices.Contains(requested, post) {
				roots = append(roots, name)
				break
			}
		}
	}
	graph, err := domain.BuildTaskGraph(defs, roots)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, name := range requested {
		node, ok := graph.Lookup(name)
		if !ok {
			continue
		}
		sb.WriteString(name + "\n")
		renderChildren(&sb, graph, node, "")
	}
	return sb.String(), nil
}

func renderChildren(sb *strings.Builder, graph *domain.TaskGraph, node int, indent string) {
	deps := append([]int(nil), graph.Preds(node)...)
	sort.Slice(deps, func(i, j int) bool {
		return graph.Name(deps[i]).String() < graph.Name(deps[j]).String()
	})
	for i, dep := range deps {
		last := i == len(deps)-1
		guide, childIndent := "├─ ", indent+"│  "
		if last {
			guide, childIndent = "└─ ", indent+"   "
		}
		sb.WriteString(indent + guide + graph.Name(dep).String() + "\n")
		renderChildren(sb, graph, dep, childIndent)
	}
}

// ListTasks returns the visible task definitions sorted by name.
func ListTasks(defs map[string]domain.TaskDef) []domain.TaskDef {
	var out []domain.TaskDef
	for _, def := range defs {
		if !def.Hide {
			out = append(out, def)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
