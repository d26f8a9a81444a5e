package taskrunner

import (
	"context"

	"github.com/grindlemire/graft"

	"github.com/LuckyWindsck/mise/internal/adapters/logger"
	"github.com/LuckyWindsck/mise/internal/adapters/shell"
	"github.com/LuckyWindsck/mise/internal/core/ports"
)

// NodeID is the unique identifier for the task runner Graft node.
const NodeID graft.ID = "engine.taskrunner"

func init() {
	graft.Register(graft.Node[*Runner]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{shell.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (*Runner, error) {
			executor, err := graft.Dep[ports.Executor](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewRunner(executor, log), nil
		},
	})
}
