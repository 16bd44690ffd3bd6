// Package pipeline runs the best-effort background stage of a submission:
// work whose outcome never reaches the caller, only the log.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lead-intake/internal/common/logger"
	"lead-intake/internal/common/metrics"
)

// Runner starts detached tasks and lets shutdown wait for them.
type Runner struct {
	logger logger.Logger
	wg     sync.WaitGroup
}

func NewRunner(log logger.Logger) *Runner {
	return &Runner{logger: log.WithFields(map[string]interface{}{"component": "pipeline"})}
}

// Go runs fn in its own goroutine with a context that keeps ctx's values but
// not its cancellation. Errors and panics are logged.
func (r *Runner) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	detached := context.WithoutCancel(ctx)

	r.wg.Add(1)
	metrics.BackgroundTasksActive.Inc()
	go func() {
		defer r.wg.Done()
		defer metrics.BackgroundTasksActive.Dec()

		start := time.Now()
		err := r.run(detached, name, fn)
		status := "ok"
		if err != nil {
			status = "error"
			r.logger.Error("background task failed", map[string]interface{}{
				"task":  name,
				"error": err.Error(),
			})
		}
		metrics.BackgroundTasks.WithLabelValues(name, status).Inc()
		metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()
}

func (r *Runner) run(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in %s: %v", name, p)
		}
	}()
	return fn(ctx)
}

// Wait blocks until every started task has finished or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
