package ports

import (
	"context"
	"io"
)

// ExecSpec describes one command execution.
type ExecSpec struct {
	Argv []string
	Dir  string
	// Env is the complete child environment ("K=V" entries).
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// Executor runs task commands and shim/exec dispatch targets. A non-zero
// exit surfaces as domain.ErrTaskFailed with the exit code attached.
type Executor interface {
	Execute(ctx context.Context, spec ExecSpec) error
}
