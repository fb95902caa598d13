package selector

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Outcome is the single result delivered for a submitted request.
type Outcome struct {
	Resolution Resolution
	Err        error
}

// Runner resolves requests off the caller's goroutine. Submitting a new
// request cancels the one in flight, whose outcome then carries the context
// error.
type Runner struct {
	coordinator *Coordinator
	logger      *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner constructs a Runner.
func NewRunner(logger *zap.Logger, coordinator *Coordinator) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{coordinator: coordinator, logger: logger}
}

// Submit starts resolving req and returns a channel that receives exactly one
// Outcome. Any previously submitted request is cancelled.
func (r *Runner) Submit(ctx context.Context, req ResolveRequest) <-chan Outcome {
	out := make(chan Outcome, 1)

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer cancel()

		res, err := r.coordinator.Resolve(runCtx, req)
		if ctxErr := runCtx.Err(); ctxErr != nil {
			r.logger.Debug("discarding superseded resolution",
				zap.String("op", "selector.Runner.Submit"),
				zap.Error(ctxErr),
			)
			out <- Outcome{Err: ctxErr}
			return
		}
		out <- Outcome{Resolution: res, Err: err}
	}()
	return out
}

// Cancel abandons the request in flight, if any.
func (r *Runner) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// Wait blocks until every submitted request has delivered its outcome.
func (r *Runner) Wait() {
	r.wg.Wait()
}
