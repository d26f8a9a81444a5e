package envbuilder

import (
	"os"
	"strings"
)

// pathList manipulates PATH-style colon-separated lists while preserving
// entry order and dropping duplicates on join.
type pathList struct {
	entries []string
}

func splitPath(s string) pathList {
	if s == "" {
		return pathList{}
	}
	return pathList{entries: strings.Split(s, string(os.PathListSeparator))}
}

// strip removes the given entries, wherever they appear. Used to peel the
// manager's previous contribution off the inherited PATH.
func (p pathList) strip(remove []string) pathList {
	if len(remove) == 0 {
		return p
	}
	drop := make(map[string]bool, len(remove))
	for _, r := range remove {
		drop[r] = true
	}
	var kept []string
	for _, e := range p.entries {
		if !drop[e] {
			kept = append(kept, e)
		}
	}
	return pathList{entries: kept}
}

// prepend places entries at the front, keeping their order.
func (p pathList) prepend(entries []string) pathList {
	out := make([]string, 0, len(entries)+len(p.entries))
	out = append(out, entries...)
	out = append(out, p.entries...)
	return pathList{entries: out}
}

func (p pathList) String() string {
	seen := make(map[string]bool, len(p.entries))
	var out []string
	for _, e := range p.entries {
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return strings.Join(out, string(os.PathListSeparator))
}
