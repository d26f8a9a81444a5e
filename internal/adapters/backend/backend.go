package backend

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.trai.ch/zerr"

	"github.com/LuckyWindsck/mise/internal/core/domain"
	"github.com/LuckyWindsck/mise/internal/core/ports"
)

// manifestBackend implements ports.Backend from an on-disk plugin dir. The
// install payload for version v lives at <plugin>/payloads/<v>; installing
// copies it into the target prefix. All state stays on disk, so instances
// are stateless across calls.
type manifestBackend struct {
	dir      string
	manifest *manifestFile
}

// newManifestBackend loads the backend rooted at dir.
func newManifestBackend(dir string) (*manifestBackend, error) {
	m, err := loadManifest(dir)
	if err != nil {
		return nil, err
	}
	return &manifestBackend{dir: dir, manifest: m}, nil
}

func (b *manifestBackend) Name() string { return b.manifest.Name }

func (b *manifestBackend) ListRemoteVersions(_ context.Context) ([]string, error) {
	out := make([]string, len(b.manifest.Versions))
	copy(out, b.manifest.Versions)
	return out, nil
}

func (b *manifestBackend) Install(ctx context.Context, version, prefix string, _ domain.ToolOptions) error {
	payload := filepath.Join(b.dir, "payloads", version)
	info, err := os.Stat(payload)
	if err != nil || !info.IsDir() {
		return zerr.With(zerr.With(domain.ErrVersionNotFound, "backend", b.Name()), "version", version)
	}
	if err := copyTree(ctx, payload, prefix); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrInstallFailed.Error()), "version", version)
	}
	return nil
}

func (b *manifestBackend) Uninstall(_ context.Context, _ string) error {
	// Nothing backend-side: the lifecycle engine removes the prefix.
	return nil
}

func (b *manifestBackend) ExecEnv(prefix string) (domain.ExecEnv, error) {
	bins := b.manifest.Bins
	if len(bins) == 0 {
		bins = []string{"bin"}
	}
	env := make(map[string]string, len(b.manifest.Env))
	for k, v := range b.manifest.Env {
		env[k] = strings.ReplaceAll(v, "{prefix}", prefix)
	}
	return domain.ExecEnv{BinPaths: bins, EnvVars: env}, nil
}

func (b *manifestBackend) Checksum(version string) (string, bool) {
	sum, ok := b.manifest.Checksums[version]
	return sum, ok
}

func (b *manifestBackend) Verify(ctx context.Context, prefix string) error {
	if len(b.manifest.VerifyCommand) == 0 {
		return nil
	}
	argv := make([]string, len(b.manifest.VerifyCommand))
	copy(argv, b.manifest.VerifyCommand)
	argv[0] = filepath.Join(prefix, argv[0])
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // command comes from the plugin manifest
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrInstallFailed.Error()), "verify", strings.Join(b.manifest.VerifyCommand, " "))
	}
	return nil
}

func (b *manifestBackend) IdiomaticFilenames() []string { return b.manifest.IdiomaticFilenames }
func (b *manifestBackend) Dependencies() []string       { return b.manifest.Dependencies }
func (b *manifestBackend) Aliases() map[string]string   { return b.manifest.Aliases }

// copyTree copies src into dst preserving file modes. It checks the
// context between files so large payloads stay cancellable.
func copyTree(ctx context.Context, src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return domain.ErrCancelled
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path) //nolint:gosec // path walked from the payload dir
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode().Perm())
	})
}

var _ ports.Backend = (*manifestBackend)(nil)
