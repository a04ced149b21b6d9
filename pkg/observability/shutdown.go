package observability

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownFunc is one step of a graceful shutdown
type ShutdownFunc func(context.Context) error

type stage struct {
	name string
	fn   ShutdownFunc
}

// ShutdownManager runs shutdown stages in the order they were added, all
// under one overall deadline. Later stages may depend on earlier ones having
// finished: the API stops accepting work before background tasks drain, and
// tasks drain before their stores close.
type ShutdownManager struct {
	logger  *Logger
	timeout time.Duration

	mu     sync.Mutex
	stages []stage
}

// NewShutdownManager creates a manager; a zero timeout means 30s
func NewShutdownManager(logger *Logger, timeout time.Duration) *ShutdownManager {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{logger: logger, timeout: timeout}
}

// Stage appends a step. Nil functions are ignored.
func (sm *ShutdownManager) Stage(name string, fn ShutdownFunc) {
	if fn == nil {
		return
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.stages = append(sm.stages, stage{name: name, fn: fn})
}

// WaitForShutdown blocks until SIGINT, SIGTERM or ctx cancellation and
// then runs the stages
func (sm *ShutdownManager) WaitForShutdown(ctx context.Context) error {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()
	sm.logger.Info("Shutdown requested")
	return sm.Shutdown(context.Background())
}

// Shutdown runs every stage even when an earlier one fails, so resources
// further down still get released. Once the deadline passes the remaining
// stages are skipped.
func (sm *ShutdownManager) Shutdown(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, sm.timeout)
	defer cancel()

	sm.mu.Lock()
	stages := append([]stage(nil), sm.stages...)
	sm.mu.Unlock()

	var errs []error
	for i, st := range stages {
		if ctx.Err() != nil {
			skipped := make([]string, 0, len(stages)-i)
			for _, rest := range stages[i:] {
				skipped = append(skipped, rest.name)
			}
			sm.logger.WithField("skipped", skipped).Warn("Shutdown deadline reached")
			errs = append(errs, fmt.Errorf("shutdown deadline reached before %s: %w", st.name, ctx.Err()))
			break
		}

		start := time.Now()
		err := st.fn(ctx)
		entry := sm.logger.WithFields(map[string]interface{}{
			"stage":       st.name,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if err != nil {
			entry.WithError(err).Error("Shutdown stage failed")
			errs = append(errs, fmt.Errorf("%s: %w", st.name, err))
			continue
		}
		entry.Debug("Shutdown stage complete")
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	sm.logger.Info("Graceful shutdown complete")
	return nil
}
