// Package shell provides the command executor adapter.
package shell

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.trai.ch/zerr"

	"github.com/LuckyWindsck/mise/internal/core/domain"
	"github.com/LuckyWindsck/mise/internal/core/ports"
)

// Executor implements ports.Executor using os/exec.
type Executor struct{}

// NewExecutor creates an Executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Execute runs the command described by spec. The executable resolves
// against the PATH inside spec.Env, not the parent process PATH, so tool
// selection follows the computed environment. Non-zero exits return
// domain.ErrTaskFailed with the exit code attached.
func (e *Executor) Execute(ctx context.Context, spec ports.ExecSpec) error {
	if len(spec.Argv) == 0 {
		return nil
	}

	name := spec.Argv[0]
	executable := name
	if !filepath.IsAbs(name) {
		if lp, err := lookPath(name, spec.Env); err == nil {
			executable = lp
		}
	}

	cmd := exec.CommandContext(ctx, executable, spec.Argv[1:]...) //nolint:gosec // user provided command
	// exec sets Args[0] to the resolved path; keep the invoked name.
	if len(cmd.Args) > 0 {
		cmd.Args[0] = name
	}
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr

	// On cancellation the child gets SIGTERM first, SIGKILL after the
	// grace window.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 5 * time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return zerr.Wrap(ctx.Err(), domain.ErrCancelled.Error())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return zerr.With(zerr.With(domain.ErrTaskFailed, "command", name), "exit_code", exitErr.ExitCode())
		}
		return zerr.With(zerr.Wrap(err, domain.ErrTaskFailed.Error()), "command", name)
	}
	return nil
}

// lookPath searches for an executable in the PATH entries of the given
// environment.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			path = strings.TrimPrefix(e, "PATH=")
			break
		}
	}
	if path == "" {
		return "", exec.ErrNotFound
	}
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: an empty entry means ".".
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if err := findExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}

var _ ports.Executor = (*Executor)(nil)
