package toolset

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	toml "github.com/pelletier/go-toml/v2"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"

	"github.com/LuckyWindsck/mise/internal/core/domain"
)

// InstallOptions tunes an install run.
type InstallOptions struct {
	// Jobs bounds install parallelism. Zero uses the settings value;
	// the floor is one.
	Jobs int
	// Force reinstalls versions that are already present.
	Force bool
	// Timeout bounds each individual install.
	Timeout time.Duration
}

const (
	stagingPrefix = ".staging-"
	stagingMaxAge = time.Hour
	lockfileName  = ".mise.lock"
)

// lockfileRecord is the integrity record written inside each prefix.
type lockfileRecord struct {
	Version  string `toml:"version"`
	Checksum string `toml:"checksum"`
}

// InstallMissing installs every missing resolved version. Installs run
// concurrently bounded by opts.Jobs; versions of the same tool serialize
// within one worker, and an on-disk lock per prefix excludes concurrent
// processes. A failure for one tool does not stop installs of others; the
// joined error carries every failure.
func (e *Engine) InstallMissing(ctx context.Context, tools []domain.Tool, opts InstallOptions) ([]domain.ResolvedVersion, error) {
	e.gcStaging()

	missing := e.MissingVersions(tools)
	if opts.Force {
		missing = e.allInstallable(tools)
	}
	if len(missing) == 0 {
		return nil, nil
	}

	jobs := opts.Jobs
	if jobs < 1 {
		jobs = 1
	}

	var (
		mu        sync.Mutex
		installed []domain.ResolvedVersion
		errs      error
	)

	// Backends may depend on other tools (cargo tools need rust); install
	// leaf waves first so dependencies are present when dependents start.
	for _, wave := range e.dependencyWaves(missing) {
		byTool := groupByTool(wave)

		var g errgroup.Group
		g.SetLimit(jobs)
		for _, versions := range byTool {
			g.Go(func() error {
				for _, rv := range versions {
					if ctx.Err() != nil {
						mu.Lock()
						errs = errors.Join(errs, zerr.Wrap(ctx.Err(), domain.ErrCancelled.Error()))
						mu.Unlock()
						return nil
					}
					err := e.installOne(ctx, rv, opts)
					mu.Lock()
					if err != nil {
						errs = errors.Join(errs, zerr.With(zerr.With(err, "tool", rv.Tool), "version", rv.Version))
					} else {
						installed = append(installed, rv)
					}
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()
	}
	return installed, errs
}

// allInstallable returns every resolved version that maps to a prefix.
func (e *Engine) allInstallable(tools []domain.Tool) []domain.ResolvedVersion {
	var out []domain.ResolvedVersion
	seen := map[string]bool{}
	for _, t := range tools {
		for _, rv := range t.Resolved {
			prefix := rv.Prefix(e.layout)
			if prefix == "" || seen[prefix] {
				continue
			}
			seen[prefix] = true
			out = append(out, rv)
		}
	}
	return out
}

// installOne installs a single resolved version: lock, stage, verify,
// rename. Already-installed versions are a no-op under the lock.
func (e *Engine) installOne(ctx context.Context, rv domain.ResolvedVersion, opts InstallOptions) error {
	backend, err := e.registry.Get(rv.Backend)
	if err != nil {
		return err
	}
	prefix := rv.Prefix(e.layout)

	release, err := e.locker.Acquire(prefix + ".lock")
	if err != nil {
		return err
	}
	defer release()

	if e.IsInstalled(rv) && !opts.Force {
		// Another process won the race; nothing to do.
		return nil
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	staging := filepath.Join(filepath.Dir(prefix), stagingPrefix+uuid.NewString())
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return zerr.Wrap(err, "failed to create staging dir")
	}
	// Partial staging survives a crash; the next run's GC reaps it.
	defer func() { _ = os.RemoveAll(staging) }()

	if err := backend.Install(ctx, rv.Version, staging, rv.Request.Options); err != nil {
		if ctx.Err() != nil {
			return zerr.Wrap(ctx.Err(), domain.ErrTimeout.Error())
		}
		return err
	}

	sum, err := hashTree(staging)
	if err != nil {
		return zerr.Wrap(err, domain.ErrInstallFailed.Error())
	}
	if expected, ok := backend.Checksum(rv.Version); ok && expected != sum {
		return zerr.With(zerr.With(domain.ErrChecksumMismatch, "expected", expected), "actual", sum)
	}
	if err := writeLockfile(staging, lockfileRecord{Version: rv.Version, Checksum: sum}); err != nil {
		return err
	}

	if opts.Force {
		_ = os.RemoveAll(prefix)
	}
	if err := os.Rename(staging, prefix); err != nil {
		return zerr.Wrap(err, domain.ErrInstallFailed.Error())
	}

	if err := backend.Verify(ctx, prefix); err != nil {
		_ = os.RemoveAll(prefix)
		return err
	}
	if e.logger != nil {
		e.logger.Info("installed", "tool", rv.Tool, "version", rv.Version)
	}
	return nil
}

// Reinstall force-reinstalls one version, used when integrity checks mark
// it corrupt.
func (e *Engine) Reinstall(ctx context.Context, rv domain.ResolvedVersion, opts InstallOptions) error {
	opts.Force = true
	return e.installOne(ctx, rv, opts)
}

// dependencyWaves partitions the versions so that backend dependencies
// install before their dependents. Tools whose dependencies are not part
// of the run form the first wave.
func (e *Engine) dependencyWaves(versions []domain.ResolvedVersion) [][]domain.ResolvedVersion {
	pending := append([]domain.ResolvedVersion(nil), versions...)
	inRun := map[string]bool{}
	for _, rv := range pending {
		inRun[rv.Tool] = true
	}

	var waves [][]domain.ResolvedVersion
	for len(pending) > 0 {
		var wave, rest []domain.ResolvedVersion
		for _, rv := range pending {
			if e.hasPendingDependency(rv, inRun) {
				rest = append(rest, rv)
			} else {
				wave = append(wave, rv)
			}
		}
		if len(wave) == 0 {
			// Dependency loop between backends; install what's left in
			// one wave rather than spinning.
			wave, rest = rest, nil
		}
		waves = append(waves, wave)
		for _, rv := range wave {
			delete(inRun, rv.Tool)
		}
		pending = rest
	}
	return waves
}

func (e *Engine) hasPendingDependency(rv domain.ResolvedVersion, inRun map[string]bool) bool {
	backend, err := e.registry.Get(rv.Backend)
	if err != nil {
		return false
	}
	for _, dep := range backend.Dependencies() {
		if dep != rv.Tool && inRun[dep] {
			return true
		}
	}
	return false
}

// groupByTool buckets versions per (backend, tool) preserving order, so
// one worker installs all versions of a tool sequentially.
func groupByTool(versions []domain.ResolvedVersion) [][]domain.ResolvedVersion {
	index := map[string]int{}
	var out [][]domain.ResolvedVersion
	for _, rv := range versions {
		key := rv.Backend + "\x00" + rv.Tool
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], rv)
	}
	return out
}

// gcStaging removes staging directories untouched for longer than the
// reap age; they are leftovers of crashed or cancelled installs.
func (e *Engine) gcStaging() {
	root := e.layout.InstallsDir()
	cutoff := e.clock.Now().Add(-stagingMaxAge)
	backends, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, b := range backends {
		tools, err := os.ReadDir(filepath.Join(root, b.Name()))
		if err != nil {
			continue
		}
		for _, t := range tools {
			dir := filepath.Join(root, b.Name(), t.Name())
			entries, err := os.ReadDir(dir)
			if err != nil {
				continue
			}
			for _, entry := range entries {
				if !isStagingName(entry.Name()) {
					continue
				}
				info, err := entry.Info()
				if err != nil || info.ModTime().After(cutoff) {
					continue
				}
				_ = os.RemoveAll(filepath.Join(dir, entry.Name()))
			}
		}
	}
}

func isStagingName(name string) bool {
	return strings.HasPrefix(name, stagingPrefix)
}

// hashTree computes the content checksum of a prefix: every regular file's
// relative path and content feed one digest, in sorted path order. The
// integrity lockfile itself is excluded.
func hashTree(root string) (string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() == lockfileName {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Strings(files)

	h := xxhash.New()
	for _, path := range files {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return "", err
		}
		_, _ = h.WriteString(rel)
		_, _ = h.Write([]byte{0})
		sum, err := hashFile(path)
		if err != nil {
			return "", err
		}
		if err := binary.Write(h, binary.LittleEndian, sum); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

func hashFile(path string) (uint64, error) {
	f, err := os.Open(path) //nolint:gosec // path walked from the prefix
	if err != nil {
		return 0, err
	}
	defer f.Close() //nolint:errcheck // best effort close
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

func writeLockfile(prefix string, rec lockfileRecord) error {
	data, err := toml.Marshal(rec)
	if err != nil {
		return zerr.Wrap(err, "failed to marshal lockfile")
	}
	if err := os.WriteFile(filepath.Join(prefix, lockfileName), data, 0o644); err != nil { //nolint:gosec // lockfile is world readable
		return zerr.Wrap(err, "failed to write lockfile")
	}
	return nil
}

func readLockfile(prefix string) (*lockfileRecord, error) {
	data, err := os.ReadFile(filepath.Join(prefix, lockfileName)) //nolint:gosec // path rooted in the install tree
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var rec lockfileRecord
	if err := toml.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
