package cache

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
	"github.com/jonboulle/clockwork"

	"github.com/LuckyWindsck/mise/internal/core/domain"
	"github.com/LuckyWindsck/mise/internal/core/ports"
)

// NodeID is the unique identifier for the cache store Graft node.
const NodeID graft.ID = "adapters.cache"

func getenv(key string) string { return os.Getenv(key) }

// LayoutNodeID provides the invocation's on-disk layout to all other nodes.
const LayoutNodeID graft.ID = "adapters.cache.layout"

func init() {
	graft.Register(graft.Node[domain.Layout]{
		ID:        LayoutNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (domain.Layout, error) {
			return domain.DetectLayout(getenv), nil
		},
	})

	graft.Register(graft.Node[ports.CacheStore]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{LayoutNodeID},
		Run: func(ctx context.Context) (ports.CacheStore, error) {
			layout, err := graft.Dep[domain.Layout](ctx)
			if err != nil {
				return nil, err
			}
			return NewStore(layout.CacheDir, clockwork.NewRealClock()), nil
		},
	})
}
