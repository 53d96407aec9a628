// Package thread implements the bounded work-stealing concurrency pool
// shared by the source aggregator and build orchestrator.
package thread

import (
	"context"
	"runtime"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sync/semaphore"
)

// defaultMultiplier matches the teacher's thread.Parallelize default: eight
// jobs admitted concurrently per available CPU.
const defaultMultiplier = 8

// ParallelizeOption configures a Parallelize call.
type ParallelizeOption func(*parallelizeOptions)

type parallelizeOptions struct {
	cancel   bool
	fastFail bool
}

// ParallelizeWithCancel cancels the context passed to not-yet-started jobs
// as soon as any job returns an error.
func ParallelizeWithCancel() ParallelizeOption {
	return func(o *parallelizeOptions) { o.cancel = true }
}

// ParallelizeWithFastFail returns as soon as the first error is observed,
// without waiting for already-running jobs to finish.
func ParallelizeWithFastFail() ParallelizeOption {
	return func(o *parallelizeOptions) { o.fastFail = true }
}

// Parallelize runs jobs with bounded concurrency (8 * runtime.NumCPU()),
// returning the combined (multierr) error of every job that failed. Order of
// execution is not guaranteed; callers needing ordered results should collect
// into a pre-sized slice indexed by job position.
func Parallelize(ctx context.Context, jobs []func(context.Context) error, options ...ParallelizeOption) error {
	return NewPool(defaultMultiplier * runtime.NumCPU()).Parallelize(ctx, jobs, options...)
}

// Pool is a bounded work-stealing pool with an explicit capacity, useful when
// callers want a capacity different from the package default.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool returns a Pool admitting at most capacity concurrent jobs.
func NewPool(capacity int) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(capacity))}
}

// Parallelize runs jobs on the pool, respecting ctx cancellation and the
// given options.
func (p *Pool) Parallelize(ctx context.Context, jobs []func(context.Context) error, options ...ParallelizeOption) error {
	opts := &parallelizeOptions{}
	for _, o := range options {
		o(opts)
	}
	if len(jobs) == 0 {
		return nil
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if opts.cancel {
		runCtx, cancel = context.WithCancel(ctx)
		defer cancel()
	}

	var (
		errs      []error
		errsCh    = make(chan error, len(jobs))
		completed atomic.Int64
	)
	for _, job := range jobs {
		job := job
		if err := p.sem.Acquire(runCtx, 1); err != nil {
			errsCh <- err
			continue
		}
		go func() {
			defer p.sem.Release(1)
			defer completed.Inc()
			if err := runCtx.Err(); err != nil {
				errsCh <- err
				return
			}
			err := job(runCtx)
			if err != nil && opts.cancel && cancel != nil {
				cancel()
			}
			errsCh <- err
		}()
	}
	for i := 0; i < len(jobs); i++ {
		if err := <-errsCh; err != nil {
			errs = append(errs, err)
			if opts.fastFail {
				break
			}
		}
	}
	return multierr.Combine(errs...)
}
