package resolver_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/LuckyWindsck/mise/internal/adapters/backend"
	"github.com/LuckyWindsck/mise/internal/adapters/cache"
	"github.com/LuckyWindsck/mise/internal/core/domain"
	"github.com/LuckyWindsck/mise/internal/core/ports"
	"github.com/LuckyWindsck/mise/internal/core/ports/mocks"
	"github.com/LuckyWindsck/mise/internal/engine/resolver"
)

func newBackend(t *testing.T, ctrl *gomock.Controller, versions []string, aliases map[string]string) (*mocks.MockBackend, ports.BackendRegistry) {
	t.Helper()
	b := mocks.NewMockBackend(ctrl)
	b.EXPECT().Name().Return("core:python").AnyTimes()
	b.EXPECT().ListRemoteVersions(gomock.Any()).Return(versions, nil).AnyTimes()
	b.EXPECT().Aliases().Return(aliases).AnyTimes()

	registry, err := backend.NewRegistry(b)
	require.NoError(t, err)
	return b, registry
}

func req(spec string) domain.VersionRequest {
	return domain.VersionRequest{Backend: "core:python", Tool: "python", Spec: spec}
}

var catalog = []string{"3.10.14", "3.11.9", "3.12.0", "3.12.1", "3.13.0-rc1"}

func TestResolve_LiteralPresent(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, registry := newBackend(t, ctrl, catalog, nil)
	r := resolver.New(registry, nil, nil)

	rv, err := r.Resolve(context.Background(), req("3.12.0"), nil)
	require.NoError(t, err)
	assert.Equal(t, "3.12.0", rv.Version)
}

func TestResolve_LiteralAbsentDefersToInstall(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, registry := newBackend(t, ctrl, catalog, nil)
	r := resolver.New(registry, nil, nil)

	rv, err := r.Resolve(context.Background(), req("2.7.18"), nil)
	require.NoError(t, err)
	assert.Equal(t, "2.7.18", rv.Version, "resolves to itself; install reports the miss")
}

func TestResolve_PrefixSelectsNewest(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, registry := newBackend(t, ctrl, catalog, nil)
	r := resolver.New(registry, nil, nil)

	rv, err := r.Resolve(context.Background(), req("3.12"), nil)
	require.NoError(t, err)
	assert.Equal(t, "3.12.1", rv.Version)
}

func TestResolve_PrefixRespectsComponentBoundary(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, registry := newBackend(t, ctrl, []string{"1.2.0", "1.20.5"}, nil)
	r := resolver.New(registry, nil, nil)

	rv, err := r.Resolve(context.Background(), req("1.2"), nil)
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", rv.Version, "1.20.5 must not match prefix 1.2")
}

func TestResolve_LatestSkipsPrerelease(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, registry := newBackend(t, ctrl, catalog, nil)
	r := resolver.New(registry, nil, nil)

	rv, err := r.Resolve(context.Background(), req("latest"), nil)
	require.NoError(t, err)
	assert.Equal(t, "3.12.1", rv.Version)
}

func TestResolve_LatestWithPatternActsLikePrefix(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, registry := newBackend(t, ctrl, []string{"18.20.0", "20.11.0", "20.12.1", "21.0.0"}, nil)
	r := resolver.New(registry, nil, nil)

	rv, err := r.Resolve(context.Background(), req("latest:20"), nil)
	require.NoError(t, err)
	assert.Equal(t, "20.12.1", rv.Version)

	_, err = r.Resolve(context.Background(), req("latest:19"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrVersionNotFound))
}

func TestResolve_AliasChains(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, registry := newBackend(t, ctrl, catalog, map[string]string{"stable": "3.12"})
	r := resolver.New(registry, nil, nil)

	ec := &domain.EffectiveConfig{Aliases: map[string]map[string]string{
		"python": {"prod": "stable"},
	}}

	rv, err := r.Resolve(context.Background(), req("prod"), ec)
	require.NoError(t, err)
	assert.Equal(t, "3.12.1", rv.Version, "prod -> stable -> 3.12 -> newest 3.12.x")
}

func TestResolve_AliasCycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, registry := newBackend(t, ctrl, catalog, nil)
	r := resolver.New(registry, nil, nil)

	ec := &domain.EffectiveConfig{Aliases: map[string]map[string]string{
		"python": {"a": "b", "b": "a"},
	}}

	_, err := r.Resolve(context.Background(), req("a"), ec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAliasCycle))
}

func TestResolve_SystemPathRefBypassCatalog(t *testing.T) {
	ctrl := gomock.NewController(t)
	b := mocks.NewMockBackend(ctrl)
	b.EXPECT().Name().Return("core:python").AnyTimes()
	// No ListRemoteVersions expectation: the catalog must not be touched.
	registry, err := backend.NewRegistry(b)
	require.NoError(t, err)
	r := resolver.New(registry, nil, nil)

	for _, spec := range []string{"system", "path:/opt/py", "ref:master"} {
		rv, err := r.Resolve(context.Background(), req(spec), nil)
		require.NoError(t, err)
		assert.Equal(t, spec, rv.Version)
	}
}

func TestResolve_UnknownAliasFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, registry := newBackend(t, ctrl, catalog, nil)
	r := resolver.New(registry, nil, nil)

	_, err := r.Resolve(context.Background(), req("nightly"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrVersionNotFound))
}

func TestResolve_CachesCatalog(t *testing.T) {
	ctrl := gomock.NewController(t)
	b := mocks.NewMockBackend(ctrl)
	b.EXPECT().Name().Return("core:python").AnyTimes()
	b.EXPECT().Aliases().Return(nil).AnyTimes()
	// The catalog is listed exactly once; the second resolve hits the cache.
	b.EXPECT().ListRemoteVersions(gomock.Any()).Return(catalog, nil).Times(1)

	registry, err := backend.NewRegistry(b)
	require.NoError(t, err)
	store := cache.NewStore(t.TempDir(), nil)
	r := resolver.New(registry, store, nil)

	for range 2 {
		rv, err := r.Resolve(context.Background(), req("3.12"), nil)
		require.NoError(t, err)
		assert.Equal(t, "3.12.1", rv.Version)
	}
}
