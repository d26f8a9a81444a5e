package domain

import (
	"strings"
)

// RequestKind classifies a version request spec.
type RequestKind int

const (
	// KindVersion is a literal or prefix version such as "3.12.1" or "3.12".
	// The resolver tries an exact catalog match first, then prefix.
	KindVersion RequestKind = iota
	// KindAlias is a symbolic name resolved through the alias maps,
	// including "latest" and "lts".
	KindAlias
	// KindPath uses a prebuilt directory verbatim as the install prefix.
	KindPath
	// KindSystem uses whatever is already on PATH, bypassing the catalog.
	KindSystem
	// KindRef is a VCS ref for backends that support building from source.
	KindRef
)

// VersionRequest is a symbolic version specifier for one tool.
type VersionRequest struct {
	Backend string
	Tool    string
	Spec    string
	Options ToolOptions
}

// Kind classifies the request's spec string.
func (r VersionRequest) Kind() RequestKind {
	switch {
	case r.Spec == "system":
		return KindSystem
	case strings.HasPrefix(r.Spec, "path:"):
		return KindPath
	case strings.HasPrefix(r.Spec, "ref:"):
		return KindRef
	case isNumericDotted(r.Spec):
		return KindVersion
	default:
		return KindAlias
	}
}

// RefValue returns the VCS ref for a KindRef request.
func (r VersionRequest) RefValue() string {
	return strings.TrimPrefix(r.Spec, "ref:")
}

// PathValue returns the directory for a KindPath request.
func (r VersionRequest) PathValue() string {
	return strings.TrimPrefix(r.Spec, "path:")
}

func (r VersionRequest) String() string {
	return r.Tool + "@" + r.Spec
}

// isNumericDotted reports whether s looks like a (possibly partial) dotted
// numeric version. Suffixes after '-' or '+' are allowed so "1.2.0-rc1"
// still counts.
func isNumericDotted(s string) bool {
	if s == "" {
		return false
	}
	if i := strings.IndexAny(s, "-+"); i > 0 {
		s = s[:i]
	}
	for _, part := range strings.Split(s, ".") {
		if part == "" {
			return false
		}
		for _, c := range part {
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	return true
}

// ResolvedVersion is a concrete (backend, tool, version) triple. Two
// resolved versions with equal triples address the same install prefix.
type ResolvedVersion struct {
	Backend string
	Tool    string
	Version string

	// Request carries the originating request, preserving options and
	// path:/system markers that bypass the install tree.
	Request VersionRequest
}

// Prefix derives the absolute install prefix for the triple. Path requests
// use their directory verbatim; system versions have no prefix.
func (rv ResolvedVersion) Prefix(layout Layout) string {
	switch rv.Request.Kind() {
	case KindPath:
		return rv.Request.PathValue()
	case KindSystem:
		return ""
	default:
		return layout.InstallPrefix(rv.Backend, rv.Tool, rv.Version)
	}
}

func (rv ResolvedVersion) String() string {
	return rv.Tool + "@" + rv.Version
}

// ToolOptions holds free-form per-request options such as a virtualenv path.
type ToolOptions map[string]string

// ParseToolOptions parses a "k=v,k2=v2" option string. Empty keys are
// skipped; a bare key maps to the empty string.
func ParseToolOptions(s string) ToolOptions {
	opts := ToolOptions{}
	for _, part := range strings.Split(s, ",") {
		k, v, _ := strings.Cut(part, "=")
		if k == "" {
			continue
		}
		opts[k] = v
	}
	return opts
}

// IsEmpty reports whether no options are set.
func (o ToolOptions) IsEmpty() bool { return len(o) == 0 }

// Clone returns a copy that can be mutated independently.
func (o ToolOptions) Clone() ToolOptions {
	if o == nil {
		return nil
	}
	out := make(ToolOptions, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}
