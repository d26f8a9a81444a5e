package ports

import (
	"context"

	"github.com/LuckyWindsck/mise/internal/core/domain"
)

// Backend provides versions for a class of tools. Backends are stateless
// across calls; all state lives on disk under the install prefixes.
type Backend interface {
	// Name is the full backend name, e.g. "core:python".
	Name() string

	// ListRemoteVersions returns the catalog in backend order, oldest
	// first. The core must not assume the ordering is semver-clean.
	ListRemoteVersions(ctx context.Context) ([]string, error)

	// Install reifies a version into the given prefix. The prefix is a
	// staging directory; the caller renames it into place on success.
	Install(ctx context.Context, version, prefix string, opts domain.ToolOptions) error

	// Uninstall removes backend-side state for a prefix. The caller
	// removes the prefix directory itself.
	Uninstall(ctx context.Context, prefix string) error

	// ExecEnv reports the bin dirs and env vars a prefix exports.
	ExecEnv(prefix string) (domain.ExecEnv, error)

	// Checksum returns the expected content checksum for a version, if
	// the backend supplies one.
	Checksum(version string) (string, bool)

	// Verify probes an installed prefix, e.g. by running the tool's
	// version subcommand. Optional; return nil when not supported.
	Verify(ctx context.Context, prefix string) error

	// IdiomaticFilenames lists per-language version file names such as
	// ".python-version".
	IdiomaticFilenames() []string

	// Dependencies names tools that must be installed before this
	// backend's tools (e.g. cargo tools depend on rust).
	Dependencies() []string

	// Aliases returns backend-provided version aliases such as "lts".
	Aliases() map[string]string
}

// BackendRegistry maps backend names to capability objects. It is built at
// startup and immutable afterwards.
type BackendRegistry interface {
	// Get looks up a backend by full name ("core:python") or by the
	// short tool name ("python") through the alias table.
	Get(name string) (Backend, error)

	// List returns all registered backends in registration order.
	List() []Backend

	// FullName expands a short tool name to its full backend name; a
	// name that already carries a backend prefix passes through.
	FullName(short string) string
}
