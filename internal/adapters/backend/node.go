package backend

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/LuckyWindsck/mise/internal/adapters/cache"
	"github.com/LuckyWindsck/mise/internal/adapters/logger"
	"github.com/LuckyWindsck/mise/internal/core/domain"
	"github.com/LuckyWindsck/mise/internal/core/ports"
)

// NodeID is the unique identifier for the backend registry Graft node.
const NodeID graft.ID = "adapters.backend"

func init() {
	graft.Register(graft.Node[ports.BackendRegistry]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{cache.LayoutNodeID, logger.NodeID},
		Run: func(ctx context.Context) (ports.BackendRegistry, error) {
			layout, err := graft.Dep[domain.Layout](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return LoadRegistry(layout, log)
		},
	})
}
