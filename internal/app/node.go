package app

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/LuckyWindsck/mise/internal/adapters/backend"
	"github.com/LuckyWindsck/mise/internal/adapters/cache"
	"github.com/LuckyWindsck/mise/internal/adapters/config"
	"github.com/LuckyWindsck/mise/internal/adapters/logger"
	"github.com/LuckyWindsck/mise/internal/adapters/shell"
	"github.com/LuckyWindsck/mise/internal/core/domain"
	"github.com/LuckyWindsck/mise/internal/core/ports"
	"github.com/LuckyWindsck/mise/internal/engine/envbuilder"
	"github.com/LuckyWindsck/mise/internal/engine/shims"
	"github.com/LuckyWindsck/mise/internal/engine/taskrunner"
	"github.com/LuckyWindsck/mise/internal/engine/toolset"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the components node
	// the CLI boots from.
	ComponentsNodeID graft.ID = "app.components"
)

// Components is what the CLI layer needs from the wired graph.
type Components struct {
	App      *App
	Logger   ports.Logger
	Executor ports.Executor
}

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			cache.LayoutNodeID,
			cache.NodeID,
			logger.NodeID,
			config.NodeID,
			backend.NodeID,
			toolset.NodeID,
			envbuilder.NodeID,
			shims.NodeID,
			taskrunner.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{AppNodeID, logger.NodeID, shell.NodeID},
		Run: func(ctx context.Context) (*Components, error) {
			application, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			executor, err := graft.Dep[ports.Executor](ctx)
			if err != nil {
				return nil, err
			}
			return &Components{App: application, Logger: log, Executor: executor}, nil
		},
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	layout, err := graft.Dep[domain.Layout](ctx)
	if err != nil {
		return nil, err
	}
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}
	loader, err := graft.Dep[ports.ConfigLoader](ctx)
	if err != nil {
		return nil, err
	}
	registry, err := graft.Dep[ports.BackendRegistry](ctx)
	if err != nil {
		return nil, err
	}
	cacheStore, err := graft.Dep[ports.CacheStore](ctx)
	if err != nil {
		return nil, err
	}
	ts, err := graft.Dep[*toolset.Engine](ctx)
	if err != nil {
		return nil, err
	}
	env, err := graft.Dep[*envbuilder.Builder](ctx)
	if err != nil {
		return nil, err
	}
	sh, err := graft.Dep[*shims.Manager](ctx)
	if err != nil {
		return nil, err
	}
	runner, err := graft.Dep[*taskrunner.Runner](ctx)
	if err != nil {
		return nil, err
	}
	return New(layout, log, loader, registry, cacheStore, ts, env, sh, runner), nil
}
