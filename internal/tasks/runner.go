// Package tasks runs fire-and-forget background work with bounded concurrency.
package tasks

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"mailsorter/internal/logger"
	"mailsorter/internal/metrics"
)

// Runner executes submitted functions in the background. Failures are logged and
// never returned to the submitter.
type Runner struct {
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewRunner(concurrency int64, timeout time.Duration, logger *logger.Logger) *Runner {
	if concurrency <= 0 {
		concurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		sem:     semaphore.NewWeighted(concurrency),
		timeout: timeout,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit schedules fn and returns immediately. It reports false once the runner is shut down.
func (r *Runner) Submit(name string, fn func(ctx context.Context) error) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.logger.Warn("Task rejected, runner is shut down:", name)
		return false
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()

		if err := r.sem.Acquire(r.ctx, 1); err != nil {
			r.logger.Warn("Task dropped before start:", name, err)
			metrics.TasksTotal.WithLabelValues("dropped").Inc()
			return
		}
		defer r.sem.Release(1)

		r.run(name, fn)
	}()
	return true
}

func (r *Runner) run(name string, fn func(ctx context.Context) error) {
	ctx := r.ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
			}
		}()
		return fn(ctx)
	}()

	if err != nil {
		metrics.TasksTotal.WithLabelValues("failed").Inc()
		r.logger.Errorf("Background task %s failed: %v", name, err)
		return
	}
	metrics.TasksTotal.WithLabelValues("succeeded").Inc()
}

// Wait blocks until every submitted task has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown stops accepting work and waits for running tasks until ctx expires,
// then cancels whatever is still running.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}
