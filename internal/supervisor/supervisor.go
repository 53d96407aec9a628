// Package supervisor launches protoc with a generated @argfile and
// concurrently drains its stdout/stderr, framing each line with the
// originating stream and PID, then reports elapsed time and exit status.
//
// Grounded on the teacher's private/pkg/command (Process/Runner) combined
// with the per-line draining idiom visible throughout bufprotopluginexec's
// stderr handling.
package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/protocgen/core/internal/command"
)

// ExecutionError wraps a non-zero protoc exit or a supervisor-level failure
// (process start, context cancellation) with the accumulated elapsed time.
type ExecutionError struct {
	Elapsed time.Duration
	Cause   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("supervisor: protoc failed after %s: %v", e.Elapsed, e.Cause)
}
func (e *ExecutionError) Unwrap() error { return e.Cause }

// Result reports a completed protoc invocation.
type Result struct {
	Elapsed time.Duration
}

// Run launches protocPath with args (expected to begin with "@"+argfilePath
// by convention established by the caller) under runner, draining stdout
// and stderr line-by-line into logger, each line framed as
// "[<stream> pid=<pid>] <line>". Run blocks until the process exits or ctx
// is cancelled, in which case the process is killed.
func Run(ctx context.Context, runner *command.Runner, protocPath string, args []string, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()

	stdoutReader, stdoutWriter := io.Pipe()
	stderrReader, stderrWriter := io.Pipe()

	proc, err := runner.Start(ctx, protocPath,
		command.StartWithArgs(args...),
		command.StartWithStdout(stdoutWriter),
		command.StartWithStderr(stderrWriter),
	)
	if err != nil {
		return Result{Elapsed: time.Since(start)}, &ExecutionError{Elapsed: time.Since(start), Cause: err}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go drain(&wg, stdoutReader, "stdout", proc.Pid(), logger)
	go drain(&wg, stderrReader, "stderr", proc.Pid(), logger)

	waitErr := proc.Wait(ctx)
	stdoutWriter.Close()
	stderrWriter.Close()
	wg.Wait()

	elapsed := time.Since(start)
	if waitErr != nil {
		return Result{Elapsed: elapsed}, &ExecutionError{Elapsed: elapsed, Cause: waitErr}
	}
	return Result{Elapsed: elapsed}, nil
}

func drain(wg *sync.WaitGroup, r io.Reader, stream string, pid int, logger *zap.Logger) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		logger.Info(fmt.Sprintf("[%s pid=%d] %s", stream, pid, scanner.Text()))
	}
}
