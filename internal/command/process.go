// Package command provides narrow child-process primitives: Process wraps a
// single os/exec invocation with context-cancellation-kills-on-wait
// semantics, and Runner bounds how many processes may run concurrently.
//
// Grounded on the teacher's private/pkg/command package (process_test.go,
// runner_unix_test.go): double-Wait is an error, and a cancelled context
// kills the running child rather than merely abandoning it.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"golang.org/x/sync/semaphore"
)

// errWaitAlreadyCalled is returned by Process.Wait if called more than once.
var errWaitAlreadyCalled = errors.New("command: wait already called")

// StartOption configures a single process start.
type StartOption func(*exec.Cmd)

// StartWithArgs sets the process arguments (excluding argv[0]).
func StartWithArgs(args ...string) StartOption {
	return func(cmd *exec.Cmd) { cmd.Args = append([]string{cmd.Path}, args...) }
}

// StartWithEnviron sets the process's environment, replacing the inherited
// one entirely.
func StartWithEnviron(environ []string) StartOption {
	return func(cmd *exec.Cmd) { cmd.Env = environ }
}

// StartWithDir sets the process's working directory.
func StartWithDir(dir string) StartOption {
	return func(cmd *exec.Cmd) { cmd.Dir = dir }
}

// StartWithStdin attaches r as the process's stdin.
func StartWithStdin(r io.Reader) StartOption {
	return func(cmd *exec.Cmd) { cmd.Stdin = r }
}

// StartWithStdout attaches w as the process's stdout.
func StartWithStdout(w io.Writer) StartOption {
	return func(cmd *exec.Cmd) { cmd.Stdout = w }
}

// StartWithStderr attaches w as the process's stderr.
func StartWithStderr(w io.Writer) StartOption {
	return func(cmd *exec.Cmd) { cmd.Stderr = w }
}

// Process represents a single running child process.
type Process interface {
	// Wait blocks until the process exits, killing it if ctx is cancelled
	// first. Wait must be called exactly once.
	Wait(ctx context.Context) error
	// Pid returns the OS process ID.
	Pid() int
}

type process struct {
	cmd       *exec.Cmd
	waitCalls int
}

func (p *process) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *process) Wait(ctx context.Context) error {
	if p.waitCalls > 0 {
		return errWaitAlreadyCalled
	}
	p.waitCalls++

	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = p.cmd.Process.Kill()
		<-done
		return ctx.Err()
	}
}

// Runner bounds the number of child processes that may run concurrently.
type Runner struct {
	sem *semaphore.Weighted
}

// RunnerOption configures a Runner.
type RunnerOption func(*runnerOptions)

type runnerOptions struct {
	parallelism int
}

// RunnerWithParallelism sets the maximum number of concurrently running
// processes. Default is unbounded.
func RunnerWithParallelism(n int) RunnerOption {
	return func(o *runnerOptions) { o.parallelism = n }
}

// NewRunner constructs a Runner.
func NewRunner(options ...RunnerOption) *Runner {
	opts := &runnerOptions{parallelism: 0}
	for _, o := range options {
		o(opts)
	}
	if opts.parallelism <= 0 {
		return &Runner{}
	}
	return &Runner{sem: semaphore.NewWeighted(int64(opts.parallelism))}
}

// Start launches name with the given options and returns its Process handle.
// The semaphore slot, if any, is held until the returned process's Wait is
// called and returns.
func (r *Runner) Start(ctx context.Context, name string, options ...StartOption) (Process, error) {
	if r.sem != nil {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("command: acquire runner slot: %w", err)
		}
	}
	cmd := exec.Command(name)
	for _, o := range options {
		o(cmd)
	}
	if err := cmd.Start(); err != nil {
		if r.sem != nil {
			r.sem.Release(1)
		}
		return nil, fmt.Errorf("command: start %q: %w", name, err)
	}
	return &releasingProcess{Process: &process{cmd: cmd}, sem: r.sem}, nil
}

type releasingProcess struct {
	Process
	sem  *semaphore.Weighted
	once sync.Once
}

func (p *releasingProcess) Wait(ctx context.Context) error {
	err := p.Process.Wait(ctx)
	if p.sem != nil {
		p.once.Do(func() { p.sem.Release(1) })
	}
	return err
}
