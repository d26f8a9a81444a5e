package toolset

import (
	"context"

	"github.com/grindlemire/graft"
	"github.com/jonboulle/clockwork"

	"github.com/LuckyWindsck/mise/internal/adapters/backend"
	"github.com/LuckyWindsck/mise/internal/adapters/cache"
	"github.com/LuckyWindsck/mise/internal/adapters/flock"
	"github.com/LuckyWindsck/mise/internal/adapters/logger"
	"github.com/LuckyWindsck/mise/internal/core/domain"
	"github.com/LuckyWindsck/mise/internal/core/ports"
	"github.com/LuckyWindsck/mise/internal/engine/resolver"
)

// NodeID is the unique identifier for the toolset engine Graft node.
const NodeID graft.ID = "engine.toolset"

func init() {
	graft.Register(graft.Node[*Engine]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			cache.LayoutNodeID,
			backend.NodeID,
			resolver.NodeID,
			flock.NodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Engine, error) {
			layout, err := graft.Dep[domain.Layout](ctx)
			if err != nil {
				return nil, err
			}
			registry, err := graft.Dep[ports.BackendRegistry](ctx)
			if err != nil {
				return nil, err
			}
			res, err := graft.Dep[*resolver.Resolver](ctx)
			if err != nil {
				return nil, err
			}
			locker, err := graft.Dep[ports.Locker](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return New(layout, registry, res, locker, log, clockwork.NewRealClock()), nil
		},
	})
}
