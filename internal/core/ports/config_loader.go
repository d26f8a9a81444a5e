package ports

import "github.com/LuckyWindsck/mise/internal/core/domain"

// ConfigLoader discovers, parses, and merges configuration layers into the
// effective view. Load is a pure function of the discovered files and the
// settings they carry.
type ConfigLoader interface {
	Load(cwd string) (*domain.EffectiveConfig, error)
}
