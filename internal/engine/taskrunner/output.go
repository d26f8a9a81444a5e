package taskrunner

import (
	"io"
	"strings"
	"sync"

	"github.com/LuckyWindsck/mise/internal/core/domain"
)

// OutputMode selects how task output is multiplexed.
type OutputMode string

const (
	// OutputSilent swallows both streams.
	OutputSilent OutputMode = "silent"
	// OutputQuiet streams as-is without task banners.
	OutputQuiet OutputMode = "quiet"
	// OutputInterleave streams as-is.
	OutputInterleave OutputMode = "interleave"
	// OutputPrefix line-buffers each task's streams and prepends the
	// task name.
	OutputPrefix OutputMode = "prefix"
	// OutputAuto picks interleave for linear graphs, prefix otherwise.
	OutputAuto OutputMode = "auto"
)

// SelectMode applies the precedence CLI flag > MISE_TASK_OUTPUT > auto.
// Auto resolves against the graph's shape: interleave for a single chain,
// prefix otherwise.
func SelectMode(flag, envVar string, graph *domain.TaskGraph) OutputMode {
	for _, candidate := range []string{flag, envVar} {
		switch OutputMode(candidate) {
		case OutputSilent, OutputQuiet, OutputInterleave, OutputPrefix:
			return OutputMode(candidate)
		}
	}
	if graph != nil && graph.IsLinear() {
		return OutputInterleave
	}
	return OutputPrefix
}

// multiplexer hands each task its stdout/stderr writers for the selected
// mode. In prefix mode lines are atomic per task; the interleaving of
// lines across tasks is unspecified.
type multiplexer struct {
	mode   OutputMode
	stdout io.Writer
	stderr io.Writer

	mu sync.Mutex
}

func newMultiplexer(mode OutputMode, stdout, stderr io.Writer) *multiplexer {
	return &multiplexer{mode: mode, stdout: stdout, stderr: stderr}
}

// writersFor returns the streams for one task plus a flush function to
// call when the task finishes.
func (m *multiplexer) writersFor(task string) (stdout, stderr io.Writer, flush func()) {
	switch m.mode {
	case OutputSilent:
		return io.Discard, io.Discard, func() {}
	case OutputPrefix:
		out := newPrefixWriter(m, m.stdout, task)
		errW := newPrefixWriter(m, m.stderr, task)
		return out, errW, func() {
			out.flush()
			errW.flush()
		}
	default: // quiet, interleave
		return &lockedWriter{mu: &m.mu, w: m.stdout}, &lockedWriter{mu: &m.mu, w: m.stderr}, func() {}
	}
}

// lockedWriter serializes writes from concurrent tasks onto one stream.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// prefixWriter buffers partial lines and emits complete lines prefixed
// with the task label in brackets.
type prefixWriter struct {
	m    *multiplexer
	w    io.Writer
	task string
	buf  strings.Builder
}

func newPrefixWriter(m *multiplexer, w io.Writer, task string) *prefixWriter {
	return &prefixWriter{m: m, w: w, task: task}
}

func (p *prefixWriter) Write(data []byte) (int, error) {
	for _, b := range data {
		if b == '\n' {
			p.emit(p.buf.String())
			p.buf.Reset()
			continue
		}
		p.buf.WriteByte(b)
	}
	return len(data), nil
}

// flush emits any trailing partial line.
func (p *prefixWriter) flush() {
	if p.buf.Len() > 0 {
		p.emit(p.buf.String())
		p.buf.Reset()
	}
}

func (p *prefixWriter) emit(line string) {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	_, _ = io.WriteString(p.w, "["+p.task+"] "+line+"\n")
}
