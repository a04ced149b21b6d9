package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/synergyhub/pkg/observability"
)

// PanicError is what a recovered task panic turns into
type PanicError struct {
	Task  string
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s: panic: %v", e.Task, e.Value)
}

// call runs fn, converting a panic into a *PanicError
func call(ctx context.Context, task string, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Task: task, Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}

// Tracker runs best-effort side effects (audit writes, notifications) off
// the request path and lets shutdown wait for them. A task keeps the values
// of the context it was started with but not its cancellation.
type Tracker struct {
	logger  *observability.Logger
	wg      sync.WaitGroup
	pending atomic.Int64
}

// NewTracker returns a Tracker logging failed tasks to logger
func NewTracker(logger *observability.Logger) *Tracker {
	return &Tracker{logger: logger}
}

// Go starts fn with its own timeout. Errors and panics are logged, never
// returned.
func (t *Tracker) Go(parent context.Context, timeout time.Duration, task string, fn func(context.Context) error) {
	t.wg.Add(1)
	t.pending.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.pending.Add(-1)

		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)
		defer cancel()

		err := call(ctx, task, fn)
		if err == nil {
			return
		}
		log := observability.WithTraceContext(ctx, t.logger).WithField("task", task)
		if p, ok := err.(*PanicError); ok {
			log.WithFields(map[string]interface{}{
				"panic": fmt.Sprint(p.Value),
				"stack": string(p.Stack),
			}).Error("Panic in background task")
			return
		}
		log.WithError(err).Warn("Background task failed")
	}()
}

// Pending is the number of tasks still running
func (t *Tracker) Pending() int {
	return int(t.pending.Load())
}

// Wait blocks until every started task has returned or timeout elapses
func (t *Tracker) Wait(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return fmt.Errorf("%d background tasks still running after %v", t.Pending(), timeout)
	}
}

// Batch applies fn to every item with at most workers running at once, each
// call bounded by timeout. It returns the failures in item order; one item
// failing does not stop the others.
func Batch[T any](ctx context.Context, logger *observability.Logger, items []T, workers int, task string, timeout time.Duration,
	fn func(context.Context, T) error) []error {

	if len(items) == 0 {
		return nil
	}
	results := make([]error, len(items))

	var g errgroup.Group
	g.SetLimit(max(workers, 1))
	for i, item := range items {
		g.Go(func() error {
			itemCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			results[i] = call(itemCtx, task, func(ctx context.Context) error {
				return fn(ctx, item)
			})
			return nil
		})
	}
	g.Wait()

	var errs []error
	for _, err := range results {
		if err == nil {
			continue
		}
		if p, ok := err.(*PanicError); ok {
			logger.WithField("task", task).WithField("stack", string(p.Stack)).Error("Panic in batch item")
		}
		errs = append(errs, err)
	}
	return errs
}
