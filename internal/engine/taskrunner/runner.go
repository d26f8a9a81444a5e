// Package taskrunner builds the task dependency DAG from the effective
// config and executes it topologically with bounded parallelism.
package taskrunner

import (
	"context"
	"errors"
	"io"
	"sort"

	"go.trai.ch/zerr"

	"github.com/LuckyWindsck/mise/internal/core/domain"
	"github.com/LuckyWindsck/mise/internal/core/ports"
)

// TaskStatus tracks one task through the run.
type TaskStatus string

const (
	// StatusPending indicates the task is waiting on predecessors.
	StatusPending TaskStatus = "Pending"
	// StatusRunning indicates the task is executing.
	StatusRunning TaskStatus = "Running"
	// StatusCompleted indicates the task finished successfully.
	StatusCompleted TaskStatus = "Completed"
	// StatusFailed indicates the task exited non-zero.
	StatusFailed TaskStatus = "Failed"
	// StatusSkipped indicates the task never started because the run
	// aborted first.
	StatusSkipped TaskStatus = "Skipped"
)

// Separator splits independent task groups on the command line. Tasks on
// different sides share no synthetic edges; they run as sibling roots.
const Separator = ":::"

// SplitRequests splits CLI task arguments on the separator.
func SplitRequests(args []string) [][]string {
	var groups [][]string
	current := []string{}
	for _, a := range args {
		if a == Separator {
			if len(current) > 0 {
				groups = append(groups, current)
				current = []string{}
			}
			continue
		}
		current = append(current, a)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

// Runner executes task graphs.
type Runner struct {
	executor ports.Executor
	logger   ports.Logger
}

// NewRunner creates a Runner.
func NewRunner(executor ports.Executor, logger ports.Logger) *Runner {
	return &Runner{executor: executor, logger: logger}
}

// RunOptions tunes one run.
type RunOptions struct {
	// Jobs bounds parallelism; floor one.
	Jobs int
	// Mode is the resolved output mode (not auto).
	Mode OutputMode
	// Env is the base child environment ("K=V").
	Env []string
	// Dir is the working directory for tasks that do not set one.
	Dir string

	Stdout io.Writer
	Stderr io.Writer
}

// Run executes the graph. Predecessors complete strictly before
// successors start. On the first failure no new tasks start; in-flight
// tasks finish. The returned error joins every task failure.
func (r *Runner) Run(ctx context.Context, graph *domain.TaskGraph, opts RunOptions) error {
	jobs := opts.Jobs
	if jobs < 1 {
		jobs = 1
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}

	mux := newMultiplexer(opts.Mode, opts.Stdout, opts.Stderr)
	state := newRunState(ctx, r, graph, mux, opts, jobs)

	for !state.isDone() {
		state.schedule()
		if state.isDone() {
			break
		}
		if state.aborted {
			// Only drain in-flight tasks; nothing new starts.
			state.handleResult(<-state.results)
			continue
		}
		select {
		case res := <-state.results:
			state.handleResult(res)
		case <-ctx.Done():
			state.aborted = true
		}
	}
	if ctx.Err() != nil {
		state.errs = errors.Join(state.errs, zerr.Wrap(ctx.Err(), domain.ErrCancelled.Error()))
	}
	return state.errs
}

type result struct {
	node int
	err  error
}

type runState struct {
	ctx     context.Context
	r       *Runner
	graph   *domain.TaskGraph
	mux     *multiplexer
	opts    RunOptions
	jobs    int
	ready   []int
	degree  []int
	status  []TaskStatus
	active  int
	aborted bool
	results chan result
	errs    error
}

func newRunState(ctx context.Context, r *Runner, graph *domain.TaskGraph, mux *multiplexer, opts RunOptions, jobs int) *runState {
	n := graph.Len()
	state := &runState{
		ctx:     ctx,
		r:       r,
		graph:   graph,
		mux:     mux,
		opts:    opts,
		jobs:    jobs,
		degree:  make([]int, n),
		status:  make([]TaskStatus, n),
		results: make(chan result, jobs),
	}
	for i := 0; i < n; i++ {
		state.status[i] = StatusPending
		state.degree[i] = len(graph.Preds(i))
		if state.degree[i] == 0 {
			state.ready = append(state.ready, i)
		}
	}
	sort.Ints(state.ready)
	return state
}

func (s *runState) isDone() bool {
	return s.active == 0 && (len(s.ready) == 0 || s.aborted)
}

func (s *runState) schedule() {
	for len(s.ready) > 0 && s.active < s.jobs && !s.aborted && s.ctx.Err() == nil {
		node := s.ready[0]
		s.ready = s.ready[1:]
		s.active++
		s.status[node] = StatusRunning

		go func(node int) {
			s.results <- result{node: node, err: s.r.runTask(s.ctx, s.graph.Task(node), s.mux, s.opts)}
		}(node)
	}
}

func (s *runState) handleResult(res result) {
	s.active--
	name := s.graph.Name(res.node)
	if res.err != nil {
		s.status[res.node] = StatusFailed
		s.errs = errors.Join(s.errs, zerr.With(res.err, "task", name.String()))
		// First failure: stop starting new tasks, let in-flight finish.
		s.aborted = true
		return
	}
	s.status[res.node] = StatusCompleted
	for _, succ := range s.graph.Succs(res.node) {
		s.degree[succ]--
		if s.degree[succ] == 0 {
			s.ready = insertReady(s.ready, succ)
		}
	}
}

func insertReady(s []int, v int) []int {
	i := sort.SearchInts(s, v)
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// runTask executes a task's commands in order through the shell.
func (r *Runner) runTask(ctx context.Context, task domain.TaskDef, mux *multiplexer, opts RunOptions) error {
	stdout, stderr, flush := mux.writersFor(task.Name)
	defer flush()

	env := opts.Env
	if len(task.Env) > 0 {
		env = append(append([]string(nil), opts.Env...), flattenEnv(task.Env)...)
	}
	dir := task.Dir
	if dir == "" {
		dir = opts.Dir
	}

	for _, command := range task.Run {
		spec := ports.ExecSpec{
			Argv:   []string{"/bin/sh", "-c", command},
			Dir:    dir,
			Env:    env,
			Stdout: stdout,
			Stderr: stderr,
		}
		if err := r.executor.Execute(ctx, spec); err != nil {
			return err
		}
	}
	return nil
}

func flattenEnv(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
