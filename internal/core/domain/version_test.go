package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LuckyWindsck/mise/internal/core/domain"
)

func TestVersionRequest_Kind(t *testing.T) {
	cases := []struct {
		spec string
		want domain.RequestKind
	}{
		{"3.12.1", domain.KindVersion},
		{"3.12", domain.KindVersion},
		{"1.2.0-rc1", domain.KindVersion},
		{"latest", domain.KindAlias},
		{"lts", domain.KindAlias},
		{"system", domain.KindSystem},
		{"path:/opt/python", domain.KindPath},
		{"ref:master", domain.KindRef},
	}
	for _, tc := range cases {
		r := domain.VersionRequest{Backend: "core:python", Tool: "python", Spec: tc.spec}
		assert.Equal(t, tc.want, r.Kind(), "spec %q", tc.spec)
	}
}

func TestVersionRequest_RefAndPathValues(t *testing.T) {
	ref := domain.VersionRequest{Spec: "ref:master"}
	assert.Equal(t, "master", ref.RefValue())

	path := domain.VersionRequest{Spec: "path:/opt/zig"}
	assert.Equal(t, "/opt/zig", path.PathValue())
}

func TestParseToolOptions(t *testing.T) {
	assert.Empty(t, domain.ParseToolOptions(""))
	assert.Equal(t, domain.ToolOptions{"exe": "rg"}, domain.ParseToolOptions("exe=rg"))
	assert.Equal(t,
		domain.ToolOptions{"exe": "rg", "match": "musl"},
		domain.ParseToolOptions("exe=rg,match=musl"))
	assert.Equal(t, domain.ToolOptions{"flag": ""}, domain.ParseToolOptions("flag"))
}

func TestResolvedVersion_PrefixDeterminism(t *testing.T) {
	layout := domain.Layout{DataDir: "/data"}

	a := domain.ResolvedVersion{Backend: "core:python", Tool: "python", Version: "3.12.1"}
	b := domain.ResolvedVersion{Backend: "core:python", Tool: "python", Version: "3.12.1"}
	assert.Equal(t, a.Prefix(layout), b.Prefix(layout))
	assert.Equal(t, "/data/installs/core-python/python/3.12.1", a.Prefix(layout))

	pathReq := domain.ResolvedVersion{
		Backend: "core:python", Tool: "python", Version: "path:/opt/py",
		Request: domain.VersionRequest{Spec: "path:/opt/py"},
	}
	assert.Equal(t, "/opt/py", pathReq.Prefix(layout))

	system := domain.ResolvedVersion{
		Backend: "core:python", Tool: "python", Version: "system",
		Request: domain.VersionRequest{Spec: "system"},
	}
	assert.Equal(t, "", system.Prefix(layout))
}
