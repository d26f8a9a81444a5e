// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "github.com/LuckyWindsck/mise/internal/adapters/backend"
	_ "github.com/LuckyWindsck/mise/internal/adapters/cache"
	_ "github.com/LuckyWindsck/mise/internal/adapters/config"
	_ "github.com/LuckyWindsck/mise/internal/adapters/flock"
	_ "github.com/LuckyWindsck/mise/internal/adapters/logger"
	_ "github.com/LuckyWindsck/mise/internal/adapters/shell"
	// Register engine and app nodes.
	_ "github.com/LuckyWindsck/mise/internal/app"
	_ "github.com/LuckyWindsck/mise/internal/engine/envbuilder"
	_ "github.com/LuckyWindsck/mise/internal/engine/resolver"
	_ "github.com/LuckyWindsck/mise/internal/engine/shims"
	_ "github.com/LuckyWindsck/mise/internal/engine/taskrunner"
	_ "github.com/LuckyWindsck/mise/internal/engine/toolset"
)
