package circle

import (
	"context"
	"sync"
	"time"

	"github.com/iwvelando/cultist-circle/internal/selector"
)

// Result is the outcome of a request submitted to a Session.
type Result struct {
	Response Response
	Err      error
}

// Session serves one interactive caller: a newer submission cancels the
// request still loading or searching for an older one.
type Session struct {
	service *Service
	runner  *selector.Runner

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSession starts a session backed by the service's coordinator.
func (s *Service) NewSession() *Session {
	return &Session{
		service: s,
		runner:  selector.NewRunner(s.logger, s.coordinator),
	}
}

// Submit resolves req in the background, catalog load included, and returns
// at once. The returned channel receives exactly one Result; a superseded
// request reports context.Canceled.
func (ss *Session) Submit(ctx context.Context, req Request) <-chan Result {
	start := time.Now()
	mode := req.Mode
	if mode == "" {
		mode = ss.service.defaults.Mode
	}
	out := make(chan Result, 1)

	ss.mu.Lock()
	ss.seq++
	seq := ss.seq
	if ss.cancel != nil {
		ss.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	ss.cancel = cancel
	ss.wg.Add(1)
	ss.mu.Unlock()

	go func() {
		defer ss.wg.Done()
		defer cancel()

		finish := func(res Result) {
			ss.service.record(mode, start, res.Err)
			out <- res
		}

		p, err := ss.service.prepare(runCtx, mode, req)

		// Only the latest submission may reach the runner, otherwise a slow
		// catalog load could supersede a newer search.
		ss.mu.Lock()
		if seq != ss.seq {
			ss.mu.Unlock()
			finish(Result{Err: context.Canceled})
			return
		}
		if err != nil {
			ss.mu.Unlock()
			finish(Result{Err: err})
			return
		}
		outcomes := ss.runner.Submit(runCtx, p.resolve)
		ss.mu.Unlock()

		outcome := <-outcomes
		if outcome.Err != nil {
			finish(Result{Err: outcome.Err})
			return
		}
		finish(Result{Response: ss.service.respond(p, outcome.Resolution)})
	}()
	return out
}

// Close cancels the request in flight and waits for it to finish.
func (ss *Session) Close() {
	ss.mu.Lock()
	ss.seq++
	if ss.cancel != nil {
		ss.cancel()
		ss.cancel = nil
	}
	ss.mu.Unlock()

	ss.wg.Wait()
	ss.runner.Cancel()
	ss.runner.Wait()
}
