package envbuilder

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/LuckyWindsck/mise/internal/adapters/cache"
	"github.com/LuckyWindsck/mise/internal/adapters/logger"
	"github.com/LuckyWindsck/mise/internal/core/domain"
	"github.com/LuckyWindsck/mise/internal/core/ports"
)

// NodeID is the unique identifier for the env builder Graft node.
const NodeID graft.ID = "engine.envbuilder"

func init() {
	graft.Register(graft.Node[*Builder]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{cache.LayoutNodeID, cache.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (*Builder, error) {
			layout, err := graft.Dep[domain.Layout](ctx)
			if err != nil {
				return nil, err
			}
			cacheStore, err := graft.Dep[ports.CacheStore](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return New(layout, cacheStore, log), nil
		},
	})
}
