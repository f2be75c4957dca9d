// Package jobs runs fire-and-forget background work whose lifetime
// outlives the request that spawned it. The server drains the registry
// on shutdown so in-flight persistence finishes before the process
// exits.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Registry tracks detached background jobs. A job's failure is reported
// via logging only; nothing rendezvouses with it.
type Registry struct {
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewRegistry creates a registry that logs job outcomes to logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Go runs fn in the background. The job is detached from any request
// context; ctx here only bounds the job itself. Panics are recovered and
// logged, never propagated.
func (r *Registry) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("background job panicked", "job", name, "panic", fmt.Sprint(p))
			}
		}()

		start := time.Now()
		if err := fn(ctx); err != nil {
			r.logger.Error("background job failed", "job", name, "error", err, "elapsed", time.Since(start))
			return
		}
		r.logger.Debug("background job done", "job", name, "elapsed", time.Since(start))
	}()
}

// Wait blocks until every job has finished or ctx expires. Returns
// ctx.Err() when the deadline wins.
func (r *Registry) Wait(ctx context.Context) error {
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
